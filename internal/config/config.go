package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Database DatabaseConfig `mapstructure:"database"`
	VLM      VLMConfig      `mapstructure:"vlm"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Demo     DemoConfig     `mapstructure:"demo"`
	Log      LogConfig      `mapstructure:"log"`
}

type SourceConfig struct {
	Dir string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type VLMConfig struct {
	Provider    string        `mapstructure:"provider"` // ollama, openai
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	NumPredict  int           `mapstructure:"num_predict"`
}

type BatchConfig struct {
	Workers    int `mapstructure:"workers"`
	RetryCount int `mapstructure:"retry_count"`
}

type CacheConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

type DemoConfig struct {
	Count      int    `mapstructure:"count"`
	OutputPath string `mapstructure:"output_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("source.dir", "./data/source")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/captions.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 8)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("vlm.provider", "ollama")
	v.SetDefault("vlm.model", "qwen2.5vl:7b")
	v.SetDefault("vlm.base_url", "http://localhost:11434")
	v.SetDefault("vlm.timeout", 30*time.Second)
	v.SetDefault("vlm.temperature", 0.7)
	v.SetDefault("vlm.num_predict", 512)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.retry_count", 3)
	v.SetDefault("cache.max_age", 30*24*time.Hour)
	v.SetDefault("demo.count", 1)
	v.SetDefault("demo.output_path", "./data/demo/demo.png")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("vlm.api_key", "VLM_API_KEY")
	v.BindEnv("vlm.base_url", "VLM_BASE_URL")
	v.BindEnv("vlm.model", "VLM_MODEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
