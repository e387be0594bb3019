package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Classify ClassifyConfig `yaml:"classify" mapstructure:"classify"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the fact table and the geometry layers.
type DataConfig struct {
	Facts       FactsSource    `yaml:"facts" mapstructure:"facts"`
	Counties    GeometrySource `yaml:"counties" mapstructure:"counties"`
	Surrounding GeometrySource `yaml:"surrounding" mapstructure:"surrounding"`
	TempDir     string         `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// FactsSource configures the tabular input.
type FactsSource struct {
	Location  string `yaml:"location" mapstructure:"location"`
	Format    string `yaml:"format" mapstructure:"format"` // csv, xlsx; empty = by extension
	KeyColumn string `yaml:"key_column" mapstructure:"key_column"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// GeometrySource configures a polygon layer. An empty Location disables the layer.
type GeometrySource struct {
	Location    string `yaml:"location" mapstructure:"location"`
	Format      string `yaml:"format" mapstructure:"format"` // topojson, geojson, shapefile; empty = by extension
	Object      string `yaml:"object" mapstructure:"object"`
	KeyProperty string `yaml:"key_property" mapstructure:"key_property"`
}

// ClassifyConfig configures the class-break engine.
type ClassifyConfig struct {
	Classes          int    `yaml:"classes" mapstructure:"classes"`
	DefaultAttribute string `yaml:"default_attribute" mapstructure:"default_attribute"`
}

// RenderConfig configures the SVG renderer.
type RenderConfig struct {
	Width             float64          `yaml:"width" mapstructure:"width"`
	Height            float64          `yaml:"height" mapstructure:"height"`
	ChartWidth        float64          `yaml:"chart_width" mapstructure:"chart_width"`
	ChartHeight       float64          `yaml:"chart_height" mapstructure:"chart_height"`
	GraticuleStep     float64          `yaml:"graticule_step" mapstructure:"graticule_step"`
	SimplifyTolerance float64          `yaml:"simplify_tolerance" mapstructure:"simplify_tolerance"`
	Palette           []string         `yaml:"palette" mapstructure:"palette"`
	NoDataColor       string           `yaml:"no_data_color" mapstructure:"no_data_color"`
	Projection        ProjectionConfig `yaml:"projection" mapstructure:"projection"`
}

// ProjectionConfig holds the conic equal-area projection parameters in degrees.
type ProjectionConfig struct {
	Parallels []float64 `yaml:"parallels" mapstructure:"parallels"`
	Rotate    []float64 `yaml:"rotate" mapstructure:"rotate"`
	Center    []float64 `yaml:"center" mapstructure:"center"`
	Scale     float64   `yaml:"scale" mapstructure:"scale"`
	Translate []float64 `yaml:"translate" mapstructure:"translate"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	CacheSize      int           `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// FetchConfig configures remote source downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// A .env file is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHOROPLETH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.facts.location", "data/Cali_County_Data.csv")
	v.SetDefault("data.facts.key_column", "California_County")
	v.SetDefault("data.facts.delimiter", ",")
	v.SetDefault("data.counties.location", "data/California_Counties.topojson")
	v.SetDefault("data.counties.object", "California_Counties")
	v.SetDefault("data.counties.key_property", "NAME_ALT")
	v.SetDefault("data.surrounding.location", "data/Surrounding_Cali_States_Provinces.topojson")
	v.SetDefault("data.surrounding.object", "Surrounding_Cali_States_Provinces")
	v.SetDefault("data.surrounding.key_property", "name")
	v.SetDefault("data.temp_dir", "/tmp/choropleth")
	v.SetDefault("classify.classes", 5)
	v.SetDefault("classify.default_attribute", "Median income per household")
	v.SetDefault("render.width", 1000)
	v.SetDefault("render.height", 1000)
	v.SetDefault("render.chart_width", 816)
	v.SetDefault("render.chart_height", 500)
	v.SetDefault("render.graticule_step", 5)
	v.SetDefault("render.simplify_tolerance", 0)
	v.SetDefault("render.palette", []string{"#D4B9DA", "#C994C7", "#DF65B0", "#DD1C77", "#980043"})
	v.SetDefault("render.no_data_color", "#CCC")
	v.SetDefault("render.projection.parallels", []float64{33, 45})
	v.SetDefault("render.projection.rotate", []float64{120, 0})
	v.SetDefault("render.projection.center", []float64{-10, 34})
	v.SetDefault("render.projection.scale", 5500)
	v.SetDefault("render.projection.translate", []float64{-270, 780})
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cache_size", 64)
	v.SetDefault("server.cache_ttl", time.Hour)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "choropleth/1.0")
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Data.Facts.Location == "" {
		return eris.New("config: data.facts.location is required")
	}
	if c.Data.Counties.Location == "" {
		return eris.New("config: data.counties.location is required")
	}
	if c.Classify.Classes < 1 {
		return eris.Errorf("config: classify.classes must be >= 1, got %d", c.Classify.Classes)
	}
	if len(c.Render.Palette) == 0 {
		return eris.New("config: render.palette must not be empty")
	}
	p := c.Render.Projection
	if len(p.Parallels) != 2 || len(p.Rotate) != 2 || len(p.Center) != 2 || len(p.Translate) != 2 {
		return eris.New("config: render.projection parallels, rotate, center and translate need two values each")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
