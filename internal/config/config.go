package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix          = "CLUBREG"
	defaultHTTPAddress = ":8080"
	defaultLogLevel    = "info"
	defaultLogFormat   = "json"
	defaultBackend     = "google"
	defaultLockTTL     = 30 * time.Second
)

type Config struct {
	HTTPAddr string

	LogLevel  string
	LogFormat string

	StoreBackend string
	Google       GoogleConfig

	// ConfigSpreadsheetID pins the config document. Empty means search-or-create.
	ConfigSpreadsheetID string
	AdminSecret         string

	CORSAllowOrigins []string

	Redis   RedisConfig
	LockTTL time.Duration

	Telegram TelegramConfig
}

type GoogleConfig struct {
	ServiceAccountEmail string
	PrivateKey          string
	CredentialsFile     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelegramConfig struct {
	Token        string
	AdminChatIDs map[int64]bool
}

// legacy env names the deployed app already uses
var envAliases = map[string]string{
	"http.address":                 "HTTP_ADDR",
	"google.service_account_email": "GOOGLE_SERVICE_ACCOUNT_EMAIL",
	"google.private_key":           "GOOGLE_PRIVATE_KEY",
	"google.credentials_file":      "GOOGLE_SERVICE_ACCOUNT_JSON",
	"config.spreadsheet_id":        "CONFIG_SPREADSHEET_ID",
	"admin.secret":                 "ADMIN_SECRET",
	"telegram.token":               "TELEGRAM_BOT_TOKEN",
	"telegram.admin_chat_ids":      "ADMIN_TG_IDS",
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, alias)
	}

	v.SetDefault("http.address", defaultHTTPAddress)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("store.backend", defaultBackend)
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("lock.ttl", defaultLockTTL)
}

// LoadDotEnv loads .env files if present. Missing files are not an error.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// FromEnv loads configuration from the process environment only.
func FromEnv() (Config, error) {
	return Load(NewViper())
}

func Load(v *viper.Viper) (Config, error) {
	var c Config
	c.HTTPAddr = strings.TrimSpace(v.GetString("http.address"))
	c.LogLevel = strings.TrimSpace(v.GetString("log.level"))
	c.LogFormat = strings.TrimSpace(v.GetString("log.format"))
	c.StoreBackend = strings.ToLower(strings.TrimSpace(v.GetString("store.backend")))

	c.Google = GoogleConfig{
		ServiceAccountEmail: strings.TrimSpace(v.GetString("google.service_account_email")),
		PrivateKey:          v.GetString("google.private_key"),
		CredentialsFile:     strings.TrimSpace(v.GetString("google.credentials_file")),
	}
	c.ConfigSpreadsheetID = strings.TrimSpace(v.GetString("config.spreadsheet_id"))
	c.AdminSecret = strings.TrimSpace(v.GetString("admin.secret"))
	c.CORSAllowOrigins = splitList(v.GetStringSlice("cors.allow_origins"))

	c.Redis = RedisConfig{
		Addr:     strings.TrimSpace(v.GetString("redis.addr")),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	c.LockTTL = v.GetDuration("lock.ttl")

	c.Telegram = TelegramConfig{
		Token:        strings.TrimSpace(v.GetString("telegram.token")),
		AdminChatIDs: parseAdminIDs(v.GetString("telegram.admin_chat_ids")),
	}

	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http.address is empty")
	}
	switch c.StoreBackend {
	case "google":
		if c.Google.CredentialsFile == "" && (c.Google.ServiceAccountEmail == "" || strings.TrimSpace(c.Google.PrivateKey) == "") {
			return fmt.Errorf("google credentials are empty: set GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_PRIVATE_KEY, or GOOGLE_SERVICE_ACCOUNT_JSON")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.backend %q", c.StoreBackend)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock.ttl must be positive")
	}
	return nil
}

// splitList flattens entries that arrive comma-separated from a single env var.
func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
