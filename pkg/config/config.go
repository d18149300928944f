package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP      HTTP      `envPrefix:"HTTP_"`
		Logger    Logger    `envPrefix:"LOGGER_"`
		Telemetry Telemetry `envPrefix:"TELEMETRY_"`
		Provider  Provider  `envPrefix:"PROVIDER_"`
		Store     Store     `envPrefix:"STORE_"`
		Redis     Redis     `envPrefix:"REDIS_"`
		Remote    Remote    `envPrefix:"REMOTE_"`
	}

	HTTP struct {
		Server  Server        `envPrefix:"SERVER_"`
		Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	}

	Server struct {
		Port         string        `env:"PORT,required"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-overzoom"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	// Provider holds the initial local provider settings. They can be
	// replaced at runtime through the provider endpoints, which are only
	// routed when AdminEnabled is set.
	Provider struct {
		AdminEnabled    bool   `env:"ADMIN_ENABLED" envDefault:"false"`
		TileSize        int    `env:"TILE_SIZE" envDefault:"256"`
		FloorZoom       int    `env:"FLOOR_ZOOM" envDefault:"0"`
		OutputFormat    string `env:"OUTPUT_FORMAT" envDefault:"jpeg"`
		JPEGQuality     int    `env:"JPEG_QUALITY" envDefault:"100"`
		MaxSourceBytes  int64  `env:"MAX_SOURCE_BYTES" envDefault:"33554432"`
		MaxSourcePixels int    `env:"MAX_SOURCE_PIXELS" envDefault:"67108864"`
		MaxConcurrent   int    `env:"MAX_CONCURRENT" envDefault:"8"`
	}

	Store struct {
		Backend      string `env:"BACKEND" envDefault:"filesystem"`
		RootDir      string `env:"ROOT_DIR" envDefault:"./tiles"`
		PathTemplate string `env:"PATH_TEMPLATE" envDefault:"{z}/{x}/{y}.png"`
		SQLitePath   string `env:"SQLITE_PATH" envDefault:"tiles.db"`
	}

	Redis struct {
		Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
		Password string        `env:"PASSWORD" envDefault:""`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"0s"`
	}

	Remote struct {
		Enabled     bool          `env:"ENABLED" envDefault:"false"`
		URLTemplate string        `env:"URL_TEMPLATE" envDefault:"https://tile.openstreetmap.org/{z}/{x}/{y}.png"`
		MinimumZ    int           `env:"MINIMUM_Z" envDefault:"0"`
		MaximumZ    int           `env:"MAXIMUM_Z" envDefault:"0"`
		Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
		RPS         float64       `env:"RPS" envDefault:"10"`
		Burst       int           `env:"BURST" envDefault:"20"`
		UserAgent   string        `env:"USER_AGENT" envDefault:"GuideHelper/1.0 (https://github.com/jaennil/guide_helper)"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
