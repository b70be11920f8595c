package feed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile holds the curation tuning knobs. The defaults were chosen
// empirically against 50-item pages; treat them as a starting point, not
// as truths.
type Profile struct {
	// Gap thresholds, in normalized column-height units. A column
	// imbalance above GapSmall triggers a filler; the size of the gap
	// picks the filler shape.
	GapSmall  float64 `yaml:"gap_small"`
	GapSquare float64 `yaml:"gap_square"`
	GapTall   float64 `yaml:"gap_tall"`

	// MaxFillers caps gap fillers per curated batch. FillerSpacing is the
	// minimum number of placed entries between two insertions. TailGuard
	// disables gap filling within the last N items of a batch.
	MaxFillers    int `yaml:"max_fillers"`
	FillerSpacing int `yaml:"filler_spacing"`
	TailGuard     int `yaml:"tail_guard"`

	// SparseMinBatch is the minimum batch size for the pre-packing sparse
	// wide-widget insertion; the widget lands at a random index in
	// [SparseMinPos, SparseMinPos+SparseSpread).
	SparseMinBatch int `yaml:"sparse_min_batch"`
	SparseMinPos   int `yaml:"sparse_min_pos"`
	SparseSpread   int `yaml:"sparse_spread"`

	// Placement heights.
	TextHeight   float64 `yaml:"text_height"`
	HeightTall   float64 `yaml:"height_tall"`
	HeightSquare float64 `yaml:"height_square"`
	HeightSmall  float64 `yaml:"height_small"`
	HeightWide   float64 `yaml:"height_wide"`

	// WideAspect marks an image as full-span when width > WideAspect * height.
	WideAspect float64 `yaml:"wide_aspect"`
}

func DefaultProfile() Profile {
	return Profile{
		GapSmall:       0.6,
		GapSquare:      0.8,
		GapTall:        1.2,
		MaxFillers:     6,
		FillerSpacing:  8,
		TailGuard:      5,
		SparseMinBatch: 10,
		SparseMinPos:   5,
		SparseSpread:   10,
		TextHeight:     0.3,
		HeightTall:     1.33,
		HeightSquare:   1.0,
		HeightSmall:    0.5,
		HeightWide:     0.6,
		WideAspect:     1.2,
	}
}

// LoadProfile reads a YAML curation profile. Missing file is not an error:
// the defaults are returned so the server runs without any configuration.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profile, nil
		}
		return profile, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := profile.Validate(); err != nil {
		return profile, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	return profile, nil
}

func (p Profile) Validate() error {
	if !(p.GapSmall > 0 && p.GapSmall <= p.GapSquare && p.GapSquare <= p.GapTall) {
		return fmt.Errorf("gap thresholds must satisfy 0 < gap_small <= gap_square <= gap_tall")
	}
	if p.MaxFillers < 0 {
		return fmt.Errorf("max_fillers must not be negative")
	}
	if p.FillerSpacing < 0 {
		return fmt.Errorf("filler_spacing must not be negative")
	}
	if p.TailGuard < 0 {
		return fmt.Errorf("tail_guard must not be negative")
	}
	if p.SparseMinPos < 0 {
		return fmt.Errorf("sparse_min_pos must not be negative")
	}
	if p.SparseSpread < 1 {
		return fmt.Errorf("sparse_spread must be at least 1")
	}
	if p.TextHeight <= 0 || p.HeightTall <= 0 || p.HeightSquare <= 0 ||
		p.HeightSmall <= 0 || p.HeightWide <= 0 {
		return fmt.Errorf("placement heights must be positive")
	}
	if p.WideAspect <= 0 {
		return fmt.Errorf("wide_aspect must be positive")
	}
	return nil
}

// FillerHeight returns the normalized placement height for a filler category.
func (p Profile) FillerHeight(c FillerCategory) float64 {
	switch c {
	case FillerLava:
		return p.HeightTall
	case FillerTrace, FillerStrings, FillerBubble:
		return p.HeightSquare
	case FillerSpinner:
		return p.HeightSmall
	case FillerSwitch, FillerGravity:
		return p.HeightWide
	default:
		return p.HeightSquare
	}
}

// ItemHeight returns the normalized placement height used by the packing
// simulation: image aspect ratio when dimensions are known, the text default
// otherwise, and the fixed category height for fillers.
func (p Profile) ItemHeight(item Item) float64 {
	if item.Kind == KindFiller {
		return p.FillerHeight(item.FillerCategory)
	}
	if item.ImageWidth > 0 && item.ImageHeight > 0 {
		return float64(item.ImageHeight) / float64(item.ImageWidth)
	}
	return p.TextHeight
}
