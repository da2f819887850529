package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rezonia/factura-importer/internal/logging"
	"github.com/rezonia/factura-importer/internal/mail"
	"github.com/rezonia/factura-importer/internal/store"
)

// EnvPrefix prefixes every environment override, e.g.
// FACTURAS_DATABASE_DSN for database.dsn
const EnvPrefix = "FACTURAS"

// DefaultFile is looked up in the working directory when no file is given
const DefaultFile = "factura-importer.yaml"

// Config holds all application configuration
type Config struct {
	Database store.Config   `mapstructure:"database"`
	Mail     MailConfig     `mapstructure:"mail"`
	Import   ImportConfig   `mapstructure:"import"`
	Export   ExportConfig   `mapstructure:"export"`
	Server   ServerConfig   `mapstructure:"server"`
	Logger   logging.Config `mapstructure:"logger"`
}

// MailConfig holds mailbox access and handling settings
type MailConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	User            string `mapstructure:"user"`
	ProcessedLabel  string `mapstructure:"processed_label"`
	MaxMessages     int    `mapstructure:"max_messages"`
	TrashInvalid    bool   `mapstructure:"trash_invalid"`
}

// Gmail returns the connection settings
func (m MailConfig) Gmail() mail.GmailConfig {
	return mail.GmailConfig{CredentialsFile: m.CredentialsFile, TokenFile: m.TokenFile, User: m.User}
}

// Options returns the message handling settings
func (m MailConfig) Options() mail.Options {
	return mail.Options{Label: m.ProcessedLabel, MaxMessages: m.MaxMessages, TrashInvalid: m.TrashInvalid}
}

// ImportConfig holds the default directory scanned by imports and where
// mail attachments are saved
type ImportConfig struct {
	TargetDirectory string `mapstructure:"target_directory"`
}

// ExportConfig holds report settings
type ExportConfig struct {
	OutputDirectory string   `mapstructure:"output_directory"`
	Formats         []string `mapstructure:"formats"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Debug        bool          `mapstructure:"debug"`
}

// Load reads .env, the optional YAML file at path and FACTURAS_*
// environment variables, in increasing priority. An empty path looks for
// DefaultFile and carries on without it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "facturas.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.debug", false)

	v.SetDefault("mail.credentials_file", "credentials.json")
	v.SetDefault("mail.token_file", "token.json")
	v.SetDefault("mail.user", "me")
	v.SetDefault("mail.processed_label", mail.DefaultLabel)
	v.SetDefault("mail.max_messages", 0)
	v.SetDefault("mail.trash_invalid", true)

	v.SetDefault("import.target_directory", "facturas")
	v.SetDefault("export.output_directory", "exports")
	v.SetDefault("export.formats", []string{"excel", "csv", "pdf"})

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.debug", false)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Mail.MaxMessages < 0 {
		return fmt.Errorf("mail.max_messages must not be negative")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
