package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	RepositoryPostgres = "postgres"
	RepositorySqlite   = "sqlite"
	RepositoryInMemory = "inmemory"
)

// EnvPrefix - переменные окружения STUDY_SERVER_PORT, STUDY_DATABASE_URL и т.д.
// перекрывают значения из файла
const EnvPrefix = "STUDY"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Sqlite     SqliteConfig     `yaml:"sqlite"`
	Logging    LoggingConfig    `yaml:"logging"`
	Repository RepositoryConfig `yaml:"repository"`
	Auth       AuthConfig       `yaml:"auth"`
	Worker     WorkerConfig     `yaml:"worker"`
	Courses    []CourseConfig   `yaml:"courses"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit"` // запросов в минуту с одного IP, 0 - без лимита
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int           `yaml:"max_connections"`
	MinConnections int           `yaml:"min_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type RepositoryConfig struct {
	Type string `yaml:"type"` // "postgres", "sqlite" или "inmemory"
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// CourseConfig - курс из справочника, заливается в хранилище при старте
type CourseConfig struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Code  string `yaml:"code"`
}

type WorkerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       100,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			MaxConnections: 10,
			MinConnections: 2,
			IdleTimeout:    5 * time.Minute,
		},
		Sqlite: SqliteConfig{
			Path: "study_tracker.db",
		},
		Repository: RepositoryConfig{
			Type: RepositoryInMemory,
		},
		Auth: AuthConfig{
			Issuer:   "study-tracker",
			TokenTTL: 15 * time.Minute,
		},
		Worker: WorkerConfig{
			Enabled:  true,
			Interval: 5 * time.Minute,
		},
	}
}

// Load читает yaml-файл поверх значений по умолчанию и применяет переменные окружения.
// Отсутствующий файл не ошибка: конфигурацию можно задать только окружением.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	overrideString(v, "server.port", &cfg.Server.Port)
	overrideString(v, "server.host", &cfg.Server.Host)
	overrideDuration(v, "server.read_timeout", &cfg.Server.ReadTimeout)
	overrideDuration(v, "server.write_timeout", &cfg.Server.WriteTimeout)
	overrideDuration(v, "server.request_timeout", &cfg.Server.RequestTimeout)
	overrideDuration(v, "server.shutdown_timeout", &cfg.Server.ShutdownTimeout)
	overrideInt(v, "server.rate_limit", &cfg.Server.RateLimit)
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = splitList(v.GetString("server.allowed_origins"))
	}

	overrideString(v, "database.url", &cfg.Database.URL)
	overrideInt(v, "database.max_connections", &cfg.Database.MaxConnections)
	overrideInt(v, "database.min_connections", &cfg.Database.MinConnections)
	overrideDuration(v, "database.idle_timeout", &cfg.Database.IdleTimeout)

	overrideString(v, "sqlite.path", &cfg.Sqlite.Path)
	overrideBool(v, "logging.development", &cfg.Logging.Development)
	overrideString(v, "repository.type", &cfg.Repository.Type)

	overrideString(v, "auth.secret", &cfg.Auth.Secret)
	overrideString(v, "auth.issuer", &cfg.Auth.Issuer)
	overrideDuration(v, "auth.token_ttl", &cfg.Auth.TokenTTL)

	overrideBool(v, "worker.enabled", &cfg.Worker.Enabled)
	overrideDuration(v, "worker.interval", &cfg.Worker.Interval)
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url обязателен для репозитория postgres")
		}
	case RepositorySqlite:
		if c.Sqlite.Path == "" {
			return errors.New("sqlite.path обязателен для репозитория sqlite")
		}
	case RepositoryInMemory:
	default:
		return fmt.Errorf("неизвестный тип репозитория: %q", c.Repository.Type)
	}

	if c.Server.Port == "" {
		return errors.New("server.port не может быть пустым")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port должен быть числом от 1 до 65535: %q", c.Server.Port)
	}
	// контекст запроса должен истечь раньше дедлайна записи, иначе клиент получит обрыв вместо 500
	if c.Server.RequestTimeout > 0 && c.Server.WriteTimeout > 0 && c.Server.RequestTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("server.request_timeout (%s) должен быть меньше server.write_timeout (%s)",
			c.Server.RequestTimeout, c.Server.WriteTimeout)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret обязателен")
	}
	if c.Worker.Enabled && c.Worker.Interval <= 0 {
		return errors.New("worker.interval должен быть больше нуля")
	}
	for i, course := range c.Courses {
		if _, err := uuid.Parse(course.ID); err != nil {
			return fmt.Errorf("courses[%d].id: %w", i, err)
		}
		if course.Title == "" {
			return fmt.Errorf("courses[%d].title не может быть пустым", i)
		}
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overrideInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func overrideBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func overrideDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

func splitList(raw string) []string {
	var result []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
