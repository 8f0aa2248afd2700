package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Gallery     GalleryConfig     `mapstructure:"gallery"`
	Dataset     DatasetConfig     `mapstructure:"dataset"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Export      ExportConfig      `mapstructure:"export"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Index       IndexConfig       `mapstructure:"index"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port" validate:"min=1,max=65535"`
	Mode           string     `mapstructure:"mode" validate:"oneof=debug release test"`
	MaxUploadBytes int64      `mapstructure:"max_upload_bytes" validate:"min=1"`
	CORS           CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=silent error warn info"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path + "?_busy_timeout=5000"
}

type GalleryConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type DatasetConfig struct {
	Dir          string `mapstructure:"dir" validate:"required"`
	Workers      int    `mapstructure:"workers" validate:"min=1"`
	BatchSize    int    `mapstructure:"batch_size" validate:"min=1"`
	MaxImageSide int    `mapstructure:"max_image_side" validate:"min=0"`
}

type RecognitionConfig struct {
	LiveTolerance    float64 `mapstructure:"live_tolerance" validate:"gt=0"`
	CheckinTolerance float64 `mapstructure:"checkin_tolerance" validate:"gt=0"`
	CheckinMode      string  `mapstructure:"checkin_mode" validate:"oneof=fast accurate"`
	LiveMode         string  `mapstructure:"live_mode" validate:"oneof=fast accurate"`
	EnrollMode       string  `mapstructure:"enroll_mode" validate:"oneof=fast accurate"`
}

type ExportConfig struct {
	CSVPath  string `mapstructure:"csv_path" validate:"required"`
	XLSXPath string `mapstructure:"xlsx_path" validate:"required"`
	// Schedule is a daily "HH:MM" run time for the API server; empty disables it.
	Schedule string `mapstructure:"schedule"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"omitempty,oneof=none local s3 r2 s3compatible"`
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type IndexConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	PageSize   int    `mapstructure:"page_size" validate:"min=1"` // hits per search call; all pages are read
}

type CaptureConfig struct {
	Device       string        `mapstructure:"device" validate:"required"` // camera index or stream URL
	RegisterSize int           `mapstructure:"register_size" validate:"min=1"`
	Interval     time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
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

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment knobs with conventional names
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("index.api_key", "QDRANT_API_KEY")
	v.BindEnv("index.host", "QDRANT_HOST")
	v.BindEnv("extractor.api_key", "FACE_API_KEY")
	v.BindEnv("extractor.base_url", "FACE_API_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/attendance.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("gallery.path", "./models/encodings.json")

	v.SetDefault("dataset.dir", "./dataset")
	v.SetDefault("dataset.workers", 4)
	v.SetDefault("dataset.batch_size", 16)
	v.SetDefault("dataset.max_image_side", 1600)

	v.SetDefault("extractor.provider", "dlib")
	v.SetDefault("extractor.models_dir", "./models/dlib")
	v.SetDefault("extractor.base_url", "http://localhost:8000")
	v.SetDefault("extractor.timeout", 30*time.Second)
	v.SetDefault("extractor.dimensions", 128)

	v.SetDefault("recognition.live_tolerance", 0.5)
	v.SetDefault("recognition.checkin_tolerance", 0.65)
	v.SetDefault("recognition.live_mode", "fast")
	v.SetDefault("recognition.checkin_mode", "accurate")
	v.SetDefault("recognition.enroll_mode", "fast")

	v.SetDefault("export.csv_path", "./attendance.csv")
	v.SetDefault("export.xlsx_path", "./attendance.xlsx")
	v.SetDefault("export.schedule", "")

	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.local_dir", "./data/archive")
	v.SetDefault("storage.bucket", "face-attendance")

	v.SetDefault("index.enabled", false)
	v.SetDefault("index.host", "localhost")
	v.SetDefault("index.port", 6334)
	v.SetDefault("index.collection", "faces")
	v.SetDefault("index.page_size", 64)

	v.SetDefault("capture.device", "0")
	v.SetDefault("capture.interval", 0)
	v.SetDefault("capture.register_size", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Extractor.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Export.Schedule != "" {
		if _, err := time.Parse("15:04", c.Export.Schedule); err != nil {
			return fmt.Errorf("invalid config: export.schedule %q must be HH:MM", c.Export.Schedule)
		}
	}
	return nil
}
