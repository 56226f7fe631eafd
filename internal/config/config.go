package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"roombooking/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Recurring  RecurringConfig  `yaml:"recurring"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Rooms      []models.Room    `yaml:"rooms"`
	Users      []models.User    `yaml:"users"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

// APIAuthConfig authenticates callers, not users. The acting user id is
// read from HeaderActor as sent, so every key with write access must belong
// to a client trusted to assert user identity (e.g. an SSO-fronted portal).
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderActor  string         `yaml:"header_actor"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey is one API consumer. Permissions are "read", "write" and "admin".
type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID int64  `yaml:"admin_chat_id"`
	Debug       bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// RecurringConfig controls materialization of recurring rules.
// A non-zero Interval replaces the daily RunHour schedule.
type RecurringConfig struct {
	Enabled     bool          `yaml:"enabled"`
	HorizonDays int           `yaml:"horizon_days"`
	RunHour     int           `yaml:"run_hour"`
	Interval    time.Duration `yaml:"interval"`
	RunOnStart  bool          `yaml:"run_on_start"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type DispatcherConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	TaskTimeout  time.Duration `yaml:"task_timeout"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
	SheetName             string `yaml:"sheet_name"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Recurring.HorizonDays < 0 {
		return fmt.Errorf("recurring horizon_days must not be negative, got %d", c.Recurring.HorizonDays)
	}
	if c.Recurring.RunHour < 0 || c.Recurring.RunHour > 23 {
		return fmt.Errorf("recurring run_hour must be within 0..23, got %d", c.Recurring.RunHour)
	}
	if err := ValidateRooms(c.Rooms); err != nil {
		return err
	}
	return ValidateUsers(c.Users)
}

func ValidateRooms(rooms []models.Room) error {
	ids := make(map[int64]bool)
	for _, room := range rooms {
		if room.ID == 0 {
			return fmt.Errorf("room '%s' has invalid ID 0", room.Name)
		}
		if ids[room.ID] {
			return fmt.Errorf("duplicate room ID found: %d", room.ID)
		}
		ids[room.ID] = true
	}
	return nil
}

func ValidateUsers(users []models.User) error {
	ids := make(map[int64]bool)
	for _, user := range users {
		if user.ID == 0 {
			return fmt.Errorf("user '%s' has invalid ID 0", user.Username)
		}
		if ids[user.ID] {
			return fmt.Errorf("duplicate user ID found: %d", user.ID)
		}
		ids[user.ID] = true
		switch user.Role {
		case models.RoleAdmin, models.RoleEmployee:
		default:
			return fmt.Errorf("user %d has unknown role %q", user.ID, user.Role)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "roombooking"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderActor == "" {
		c.API.Auth.HeaderActor = "x-user-id"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Recurring.HorizonDays == 0 {
		c.Recurring.HorizonDays = models.DefaultHorizonDays
	}
	if c.Recurring.RunHour == 0 {
		c.Recurring.RunHour = models.DefaultRecurringRunHour
	}
	if c.Recurring.LockTTL == 0 {
		c.Recurring.LockTTL = 10 * time.Minute
	}

	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = 2
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = models.DefaultDispatcherQueueSize
	}
	if c.Dispatcher.MaxRetries == 0 {
		c.Dispatcher.MaxRetries = 3
	}
	if c.Dispatcher.InitialDelay == 0 {
		c.Dispatcher.InitialDelay = 500 * time.Millisecond
	}
	if c.Dispatcher.MaxDelay == 0 {
		c.Dispatcher.MaxDelay = 30 * time.Second
	}
	if c.Dispatcher.TaskTimeout == 0 {
		c.Dispatcher.TaskTimeout = 15 * time.Second
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	for i := range c.Rooms {
		if c.Rooms[i].State == "" {
			c.Rooms[i].State = models.LifecycleActive
		}
	}
	for i := range c.Users {
		if c.Users[i].Role == "" {
			c.Users[i].Role = models.RoleEmployee
		}
		if c.Users[i].State == "" {
			c.Users[i].State = models.LifecycleActive
		}
	}
}
