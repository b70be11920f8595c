package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./discover.db" description:"Path to the SQLite note database"`
	CacheDir string `long:"cache-dir" env:"CACHE_DIR" default:"./cache" description:"Directory for the disk image cache"`

	// Feed pipeline configuration
	PageSize     int    `long:"page-size" env:"PAGE_SIZE" default:"50" description:"Notes fetched per page"`
	ProfilePath  string `long:"curation-profile" env:"CURATION_PROFILE" description:"YAML curation profile (optional, defaults built in)"`
	MaxDimension int    `long:"max-image-dimension" env:"MAX_IMAGE_DIMENSION" default:"1200" description:"Larger image dimension bound in pixels"`
	JPEGQuality  int    `long:"jpeg-quality" env:"JPEG_QUALITY" default:"85" description:"JPEG compression quality for cached images"`
	CacheTrimAge int    `long:"cache-trim-age" env:"CACHE_TRIM_AGE" default:"86400" description:"Cache entries older than this many seconds are trimmed"`

	// Seeding configuration
	SeedURL  string  `long:"seed-url" env:"SEED_URL" description:"RSS/Atom feed URL to seed the note store from (optional)"`
	SeedLat  float64 `long:"seed-lat" env:"SEED_LAT" default:"52.52" description:"Latitude of the seeding center point"`
	SeedLng  float64 `long:"seed-lng" env:"SEED_LNG" default:"13.405" description:"Longitude of the seeding center point"`
	SeedSpan float64 `long:"seed-span" env:"SEED_SPAN" default:"0.2" description:"Degrees of scatter around the seeding center"`

	// Application configuration
	SessionTTL int    `long:"session-ttl" env:"SESSION_TTL" default:"1800" description:"Idle feed sessions are destroyed after this many seconds"`
	Port       string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	UserAgent  string `long:"user-agent" env:"USER_AGENT" default:"VisiBoard Discover/1.0" description:"User agent string for HTTP requests"`
	Timezone   string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug      bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:       raw.DBPath,
		CacheDir:     raw.CacheDir,
		PageSize:     raw.PageSize,
		ProfilePath:  raw.ProfilePath,
		MaxDimension: raw.MaxDimension,
		JPEGQuality:  raw.JPEGQuality,
		CacheTrimAge: raw.CacheTrimAge,
		SeedURL:      raw.SeedURL,
		SeedLat:      raw.SeedLat,
		SeedLng:      raw.SeedLng,
		SeedSpan:     raw.SeedSpan,
		SessionTTL:   raw.SessionTTL,
		Port:         raw.Port,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
