package cfg

type Cfg struct {
	// Storage configuration
	DBPath   string
	CacheDir string

	// Feed pipeline configuration
	PageSize     int
	ProfilePath  string
	MaxDimension int
	JPEGQuality  int
	CacheTrimAge int

	// Seeding configuration
	SeedURL  string
	SeedLat  float64
	SeedLng  float64
	SeedSpan float64

	// Application configuration
	SessionTTL int
	Port       string
	UserAgent  string
	Timezone   string
	Debug      bool
	Version    string
}
