package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Harvest  HarvestConfig  `yaml:"harvest" mapstructure:"harvest"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// HarvestConfig configures the MapServer harvester.
type HarvestConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	PageSize      int    `yaml:"page_size" mapstructure:"page_size"`
	PageDelayMS   int    `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	OutSR         int    `yaml:"out_sr" mapstructure:"out_sr"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	LayersFile    string `yaml:"layers_file" mapstructure:"layers_file"`
	Centroid      string `yaml:"centroid" mapstructure:"centroid"`
	IDField       string `yaml:"id_field" mapstructure:"id_field"`
	TypeField     string `yaml:"type_field" mapstructure:"type_field"`
	OutputJSONL   string `yaml:"output_jsonl" mapstructure:"output_jsonl"`
	OutputCSV     string `yaml:"output_csv" mapstructure:"output_csv"`
	OutputGeoJSON string `yaml:"output_geojson" mapstructure:"output_geojson"`
}

// RegistryConfig configures the registry merger.
type RegistryConfig struct {
	PrefixConfig   string `yaml:"prefix_config" mapstructure:"prefix_config"`
	Output         string `yaml:"output" mapstructure:"output"`
	StrictPrefixes bool   `yaml:"strict_prefixes" mapstructure:"strict_prefixes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FACILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("harvest.base_url", "https://nve.geodataonline.no/arcgis/rest/services/Mapservices/Varme/MapServer")
	v.SetDefault("harvest.page_size", 1000)
	v.SetDefault("harvest.page_delay_ms", 250)
	v.SetDefault("harvest.timeout_secs", 60)
	v.SetDefault("harvest.out_sr", 4326)
	v.SetDefault("harvest.user_agent", "facility-registry/1.0")
	v.SetDefault("harvest.layers_file", "")
	v.SetDefault("harvest.centroid", "mean")
	v.SetDefault("harvest.id_field", "OBJECTID")
	v.SetDefault("harvest.type_field", "varmeType")
	v.SetDefault("harvest.output_jsonl", "varmeanlegg.jsonl")
	v.SetDefault("harvest.output_csv", "varmeanlegg.csv")
	v.SetDefault("harvest.output_geojson", "")
	v.SetDefault("registry.prefix_config", "anleggsreg_prefix.csv")
	v.SetDefault("registry.output", "anleggsregister.jsonl")
	v.SetDefault("registry.strict_prefixes", false)

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

	return &cfg, nil
}

// Validate checks the fields a command depends on. Mode is "harvest" or "registry".
func (c *Config) Validate(mode string) error {
	switch mode {
	case "harvest":
		if c.Harvest.BaseURL == "" {
			return eris.New("config: harvest.base_url is required")
		}
		if c.Harvest.PageSize <= 0 {
			return eris.Errorf("config: harvest.page_size must be positive, got %d", c.Harvest.PageSize)
		}
		if c.Harvest.PageDelayMS < 0 {
			return eris.Errorf("config: harvest.page_delay_ms must not be negative, got %d", c.Harvest.PageDelayMS)
		}
		if c.Harvest.IDField == "" || c.Harvest.TypeField == "" {
			return eris.New("config: harvest.id_field and harvest.type_field are required")
		}
		if c.Harvest.IDField == c.Harvest.TypeField {
			return eris.Errorf("config: harvest.id_field and harvest.type_field must differ, both are %q", c.Harvest.IDField)
		}
		for _, f := range []string{c.Harvest.IDField, c.Harvest.TypeField} {
			if f == "lat" || f == "lon" {
				return eris.Errorf("config: harvest field %q collides with the lat/lon columns", f)
			}
		}
		if c.Harvest.OutputJSONL == "" && c.Harvest.OutputCSV == "" && c.Harvest.OutputGeoJSON == "" {
			return eris.New("config: at least one harvest output path is required")
		}
	case "registry":
		if c.Registry.PrefixConfig == "" {
			return eris.New("config: registry.prefix_config is required")
		}
		if c.Registry.Output == "" {
			return eris.New("config: registry.output is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
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
