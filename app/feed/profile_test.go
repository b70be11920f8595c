package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfile_Defaults(t *testing.T) {
	profile, err := LoadProfile("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if profile.GapSmall != 0.6 || profile.GapSquare != 0.8 || profile.GapTall != 1.2 {
		t.Errorf("Unexpected default gap thresholds: %+v", profile)
	}
	if profile.MaxFillers != 6 {
		t.Errorf("Expected default filler cap 6, got %d", profile.MaxFillers)
	}
	if profile.FillerSpacing != 8 {
		t.Errorf("Expected default filler spacing 8, got %d", profile.FillerSpacing)
	}
}

func TestLoadProfile_MissingFileFallsBackToDefaults(t *testing.T) {
	profile, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Missing profile file should not be an error, got: %v", err)
	}
	if profile != DefaultProfile() {
		t.Errorf("Expected default profile for missing file")
	}
}

func TestLoadProfile_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.yml")
	content := `
gap_small: 0.5
gap_square: 0.9
gap_tall: 1.5
max_fillers: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if profile.GapSmall != 0.5 || profile.GapSquare != 0.9 || profile.GapTall != 1.5 {
		t.Errorf("Profile file values not applied: %+v", profile)
	}
	if profile.MaxFillers != 3 {
		t.Errorf("Expected filler cap 3, got %d", profile.MaxFillers)
	}
	// Fields not present in the file keep their defaults
	if profile.FillerSpacing != 8 {
		t.Errorf("Expected default spacing 8, got %d", profile.FillerSpacing)
	}
}

func TestLoadProfile_InvalidThresholdOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curation.yml")
	content := "gap_small: 2.0\ngap_square: 0.8\ngap_tall: 1.2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadProfile(path); err == nil {
		t.Error("Expected validation error for unordered gap thresholds")
	}
}

func TestProfile_ItemHeight(t *testing.T) {
	profile := DefaultProfile()

	tall := Item{ImageWidth: 400, ImageHeight: 800, Kind: KindContent}
	if h := profile.ItemHeight(tall); h != 2.0 {
		t.Errorf("Expected aspect height 2.0, got %v", h)
	}

	text := Item{Kind: KindContent}
	if h := profile.ItemHeight(text); h != profile.TextHeight {
		t.Errorf("Expected text default %v, got %v", profile.TextHeight, h)
	}

	lava := Item{Kind: KindFiller, FillerCategory: FillerLava}
	if h := profile.ItemHeight(lava); h != profile.HeightTall {
		t.Errorf("Expected tall filler height %v, got %v", profile.HeightTall, h)
	}

	spinner := Item{Kind: KindFiller, FillerCategory: FillerSpinner}
	if h := profile.ItemHeight(spinner); h != profile.HeightSmall {
		t.Errorf("Expected small filler height %v, got %v", profile.HeightSmall, h)
	}
}

func TestItem_IsFullSpan(t *testing.T) {
	profile := DefaultProfile()

	wide := Item{ImageWidth: 1200, ImageHeight: 400, Kind: KindContent}
	if !wide.IsFullSpan(profile.WideAspect) {
		t.Error("1200x400 image should be full-span")
	}

	square := Item{ImageWidth: 400, ImageHeight: 400, Kind: KindContent}
	if square.IsFullSpan(profile.WideAspect) {
		t.Error("Square image should not be full-span")
	}

	// Exactly at the boundary: width must exceed aspect * height
	boundary := Item{ImageWidth: 480, ImageHeight: 400, Kind: KindContent}
	if boundary.IsFullSpan(profile.WideAspect) {
		t.Error("Image at exactly 1.2x should not be full-span")
	}

	gravity := Item{Kind: KindFiller, FillerCategory: FillerGravity}
	if !gravity.IsFullSpan(profile.WideAspect) {
		t.Error("Gravity widget should be full-span")
	}

	lava := Item{Kind: KindFiller, FillerCategory: FillerLava, ImageWidth: 1200, ImageHeight: 400}
	if lava.IsFullSpan(profile.WideAspect) {
		t.Error("Non-wide filler should never be full-span")
	}
}
