package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = ".env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env     string
	DB      DB
	Server  Server
	Redis   Redis
	Session Session
	Cleanup Cleanup
}

type DB struct {
	DatabaseURI string `env:"DATABASE_URI"`
	Migrations  string `env:"MIGRATIONS_PATH"`
}

type Server struct {
	RunAddress string `env:"RUN_ADDRESS"`
}

// Redis - шина изменений документов; пустой адрес - шина в памяти процесса
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type Session struct {
	TTL time.Duration `env:"SESSION_TTL"`
}

type Cleanup struct {
	Schedule  string        `env:"CLEANUP_SCHEDULE"`
	Retention time.Duration `env:"TOMBSTONE_RETENTION"`
}

func MustLoad() *Config {
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Fatalf("load .env: %v", err)
		}
	} else {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Env: v.GetString("app_env"),
		DB: DB{
			DatabaseURI: v.GetString("database_uri"),
			Migrations:  v.GetString("migrations_path"),
		},
		Server: Server{RunAddress: v.GetString("run_address")},
		Redis: Redis{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Session: Session{TTL: v.GetDuration("session_ttl")},
		Cleanup: Cleanup{
			Schedule:  v.GetString("cleanup_schedule"),
			Retention: v.GetDuration("tombstone_retention"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("run_address", ":8080")
	v.SetDefault("migrations_path", "migrations")
	v.SetDefault("redis_db", 0)
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("cleanup_schedule", "0 0 * * * *")
	v.SetDefault("tombstone_retention", "720h")
}
