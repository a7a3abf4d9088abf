package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"repairjournal/internal/domain/identity"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	envPrefix        = "journal"
	defaultConfigDir = ".repair-journal"
	configFileName   = "journal.yaml"

	// PathDisabled отключает файл, например офлайн-кэш документов
	PathDisabled = "off"
)

type Config struct {
	Env            string        `mapstructure:"app_env" validate:"oneof=local dev prod"`
	ServerURL      string        `mapstructure:"server_url" validate:"omitempty,url"`
	ConfigDir      string        `mapstructure:"config_dir" validate:"required"`
	KVPath         string        `mapstructure:"kv_path" validate:"required"`
	CachePath      string        `mapstructure:"cache_path"`
	ExportDir      string        `mapstructure:"export_dir" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" validate:"gt=0"`

	Bootstrap Bootstrap `mapstructure:"bootstrap"`
	Worker    Worker    `mapstructure:"worker"`
	Export    Export    `mapstructure:"export"`

	// Directory заменяет встроенный справочник пользователей
	Directory map[identity.Role][]identity.Identity `mapstructure:"directory" validate:"-"`
}

type Bootstrap struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
}

// Worker - офлайн-кэш оболочки приложения, команда serve
type Worker struct {
	Listen        string   `mapstructure:"listen" validate:"required,hostname_port"`
	Version       string   `mapstructure:"version" validate:"required"`
	RedisAddr     string   `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string   `mapstructure:"redis_password"`
	RedisDB       int      `mapstructure:"redis_db" validate:"min=0"`
	Denylist      []string `mapstructure:"denylist"`
}

// Export - бакет для выгрузок; пустой Bucket - выгрузка в ExportDir
type Export struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_with=Bucket"`
	AccessKey string `mapstructure:"access_key" validate:"required_with=Bucket"`
	SecretKey string `mapstructure:"secret_key" validate:"required_with=Bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env, переменные окружения JOURNAL_* и необязательный YAML-файл.
// Пустой path - journal.yaml в каталоге конфигурации, если он есть.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Ошибка загрузки .env файла: %v", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	configDir := expandHome(v.GetString("config_dir"))
	if path == "" {
		path = filepath.Join(configDir, configFileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		configDir = expandHome(v.GetString("config_dir"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ConfigDir = configDir
	cfg.KVPath = resolvePath(configDir, cfg.KVPath, "journal.db")
	cfg.CachePath = resolvePath(configDir, cfg.CachePath, "cache.db")
	cfg.ExportDir = resolvePath(configDir, cfg.ExportDir, "exports")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvProd)
	v.SetDefault("server_url", "")
	v.SetDefault("config_dir", filepath.Join("~", defaultConfigDir))
	v.SetDefault("kv_path", "")
	v.SetDefault("cache_path", "")
	v.SetDefault("export_dir", "")
	v.SetDefault("timeout", "10s")
	v.SetDefault("reconnect_delay", "2s")

	v.SetDefault("bootstrap.max_attempts", 3)
	v.SetDefault("bootstrap.retry_delay", "2s")

	v.SetDefault("worker.listen", "127.0.0.1:8090")
	v.SetDefault("worker.version", "v1")
	v.SetDefault("worker.redis_addr", "")
	v.SetDefault("worker.redis_password", "")
	v.SetDefault("worker.redis_db", 0)

	v.SetDefault("export.bucket", "")
	v.SetDefault("export.endpoint", "")
	v.SetDefault("export.access_key", "")
	v.SetDefault("export.secret_key", "")
	v.SetDefault("export.region", "")
	v.SetDefault("export.use_ssl", false)
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	for role := range c.Directory {
		if !role.Valid() {
			return fmt.Errorf("validate config: unknown role %q in directory", role)
		}
	}
	return nil
}

// IdentityProvider - справочник пользователей из конфигурации или встроенный
func (c *Config) IdentityProvider() (*identity.Directory, error) {
	if len(c.Directory) == 0 {
		return identity.DefaultDirectory(), nil
	}
	return identity.NewDirectory(c.Directory)
}

func resolvePath(dir, value, fallback string) string {
	switch value {
	case PathDisabled:
		return ""
	case "":
		return filepath.Join(dir, fallback)
	default:
		return expandHome(value)
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
