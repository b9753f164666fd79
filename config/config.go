package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		RateLimit      int           `mapstructure:"rateLimit"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
		Redis struct {
			Enabled  bool   `mapstructure:"enabled"`
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Services struct {
		AMap struct {
			BaseURL      string        `mapstructure:"baseURL"`
			Timeout      time.Duration `mapstructure:"timeout"`
			GeocodeDelay time.Duration `mapstructure:"geocodeDelay"`
		} `mapstructure:"amap"`
		LLM struct {
			Timeout            time.Duration `mapstructure:"timeout"`
			ExtractTemperature float32       `mapstructure:"extractTemperature"`
			AdviceTemperature  float32       `mapstructure:"adviceTemperature"`
			AdviceMaxTokens    int           `mapstructure:"adviceMaxTokens"`
		} `mapstructure:"llm"`
		Routing struct {
			FallbackSpeedKmh float64       `mapstructure:"fallbackSpeedKmh"`
			MaxConcurrency   int           `mapstructure:"maxConcurrency"`
			CacheTTL         time.Duration `mapstructure:"cacheTTL"`
		} `mapstructure:"routing"`
	} `mapstructure:"services"`
	// Defaults seed the settings record until the user saves one.
	Defaults struct {
		AMapKey          string `mapstructure:"amapKey"`
		AMapSecurityCode string `mapstructure:"amapSecurityCode"`
		LLMAPIKey        string `mapstructure:"llmApiKey"`
		LLMBaseURL       string `mapstructure:"llmBaseUrl"`
		LLMModel         string `mapstructure:"llmModel"`
	} `mapstructure:"defaults"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// TRIPSPOT_DEFAULTS_AMAPKEY overrides defaults.amapKey and so on.
	v.SetEnvPrefix("TRIPSPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

// Development reports whether the app runs in development mode.
func (c Config) Development() bool {
	return c.Mode == "" || c.Mode == "development"
}
