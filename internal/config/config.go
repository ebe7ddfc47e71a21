package config

import (
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer  `yaml:"http_server"`
	Database    `yaml:"database"`
	ShortLink   `yaml:"short_link"`
	Analytics   `yaml:"analytics"`
	Maintenance `yaml:"maintenance"`
}

// HTTPServer holds HTTP server specific configuration.
type HTTPServer struct {
	Address      string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  int    `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30"`
	WriteTimeout int    `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30"`
	IdleTimeout  int    `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60"`
}

// Database holds PostgreSQL connection configuration.
type Database struct {
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"shortreach"`
	Password        string `yaml:"password" env:"DB_PASSWORD" env-default:""`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"shortreach"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"50"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// ShortLink holds service-specific configuration.
type ShortLink struct {
	BaseURL string `yaml:"base_url" env:"SHORTLINK_BASE_URL" env-default:"http://localhost:8080"`

	// DetailedTracking enables per-click event rows with device, browser and
	// referrer breakdowns. Disabled, the service keeps the counter only.
	DetailedTracking      bool   `yaml:"detailed_tracking" env:"SHORTLINK_DETAILED_TRACKING" env-default:"false"`
	MaxGenerationAttempts int    `yaml:"max_generation_attempts" env:"SHORTLINK_MAX_GENERATION_ATTEMPTS" env-default:"10"`
	DefaultRefreshDays    int    `yaml:"default_refresh_days" env:"SHORTLINK_DEFAULT_REFRESH_DAYS" env-default:"90"`
	ListLimit             int    `yaml:"list_limit" env:"SHORTLINK_LIST_LIMIT" env-default:"100"`
	UARegexesPath         string `yaml:"ua_regexes_path" env:"SHORTLINK_UA_REGEXES_PATH" env-default:""`
}

// Analytics holds the asynchronous click pipeline configuration.
type Analytics struct {
	WorkerCount int `yaml:"worker_count" env:"ANALYTICS_WORKER_COUNT" env-default:"3"`
	BufferSize  int `yaml:"buffer_size" env:"ANALYTICS_BUFFER_SIZE" env-default:"1000"`
}

// Maintenance holds the expiration sweeper configuration.
type Maintenance struct {
	SweepInterval string `yaml:"sweep_interval" env:"MAINTENANCE_SWEEP_INTERVAL" env-default:"1h"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml" // default path
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	return &cfg
}
