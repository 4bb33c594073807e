package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"reservo/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig          `yaml:"app"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Backup        BackupConfig       `yaml:"backup"`
	Monitoring    MonitoringConfig   `yaml:"monitoring"`
	Logging       LoggingConfig      `yaml:"logging"`
	API           APIConfig          `yaml:"api"`
	Admin         AdminConfig        `yaml:"admin"`
	Booking       BookingConfig      `yaml:"booking"`
	Notifications NotificationConfig `yaml:"notifications"`
	Google        GoogleConfig       `yaml:"google"`
	AMQP          AMQPConfig         `yaml:"amqp"`
	Exports       ExportConfig       `yaml:"exports"`
	Services      []models.Service   `yaml:"services"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves the business time zone used to decide what "today" is.
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AdminConfig struct {
	SessionHashKey  string                `yaml:"session_hash_key"`
	SessionBlockKey string                `yaml:"session_block_key"`
	JWTSecret       string                `yaml:"jwt_secret"`
	TokenTTL        time.Duration         `yaml:"token_ttl"`
	LoginPath       string                `yaml:"login_path"`
	Accounts        []models.AdminAccount `yaml:"accounts"`
}

type BookingConfig struct {
	DefaultSlots      []string      `yaml:"default_slots"`
	MaxBookingDays    int           `yaml:"max_booking_days"`
	DepositPercent    float64       `yaml:"deposit_percent"`
	FlowTTL           time.Duration `yaml:"flow_ttl"`
	ReserveRateLimit  int           `yaml:"reserve_rate_limit"`
	ReserveRateWindow time.Duration `yaml:"reserve_rate_window"`
}

type NotificationConfig struct {
	From          string         `yaml:"from"`
	BusinessName  string         `yaml:"business_name"`
	OperatorEmail string         `yaml:"operator_email"`
	Telegram      TelegramConfig `yaml:"telegram"`
	Twilio        TwilioConfig   `yaml:"twilio"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
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
	Schedule      string `yaml:"schedule"` // cron expression, e.g. "0 3 * * *"
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

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
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

var slotTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.DepositPercent < 0 || c.Booking.DepositPercent > 100 {
		return fmt.Errorf("booking.deposit_percent must be within 0..100, got %v", c.Booking.DepositPercent)
	}

	if err := ValidateSlotTimes(c.Booking.DefaultSlots); err != nil {
		return err
	}

	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup.storage_path is required when backups are enabled")
	}

	if _, err := ParseTrustedProxies(c.API.HTTP.TrustedProxies); err != nil {
		return err
	}
	return ValidateServices(c.Services)
}

// ParseTrustedProxies turns "10.0.0.1" or "10.0.0.0/8" entries into prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("api.http.trusted_proxies: invalid CIDR %q", e)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("api.http.trusted_proxies: invalid IP %q", e)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// ValidateSlotTimes checks HH:MM labels and their uniqueness.
func ValidateSlotTimes(slots []string) error {
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if !slotTimeRe.MatchString(s) {
			return fmt.Errorf("invalid slot time %q, expected HH:MM", s)
		}
		if seen[s] {
			return fmt.Errorf("duplicate slot time %q", s)
		}
		seen[s] = true
	}
	return nil
}

func ValidateServices(services []models.Service) error {
	ids := make(map[string]bool)
	for _, svc := range services {
		if svc.ID == "" {
			return fmt.Errorf("service '%s' has empty ID", svc.Name)
		}
		if ids[svc.ID] {
			return fmt.Errorf("duplicate service ID found: %s", svc.ID)
		}
		if svc.StartingPrice < 0 {
			return fmt.Errorf("service %s has negative starting price", svc.ID)
		}
		ids[svc.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "reservo"
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
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if len(c.API.HTTP.CORSOrigins) == 0 {
		c.API.HTTP.CORSOrigins = []string{"*"}
	}

	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 12 * time.Hour
	}
	if c.Admin.LoginPath == "" {
		c.Admin.LoginPath = "/admin-login"
	}

	// Booking defaults
	if len(c.Booking.DefaultSlots) == 0 {
		c.Booking.DefaultSlots = append([]string(nil), models.DefaultSlotTimes...)
	}
	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Booking.DepositPercent == 0 {
		c.Booking.DepositPercent = models.DefaultDepositPercent
	}
	if c.Booking.FlowTTL == 0 {
		c.Booking.FlowTTL = models.DefaultFlowTTL * time.Second
	}
	if c.Booking.ReserveRateLimit == 0 {
		c.Booking.ReserveRateLimit = models.ReserveRateLimit
	}
	if c.Booking.ReserveRateWindow == 0 {
		c.Booking.ReserveRateWindow = models.ReserveRateWindow * time.Second
	}

	if c.Notifications.BusinessName == "" {
		c.Notifications.BusinessName = "AfriFrame Studio"
	}
	if c.Notifications.OperatorEmail == "" {
		c.Notifications.OperatorEmail = "admin@afriframe.com"
	}
	if c.Notifications.From == "" {
		c.Notifications.From = "bookings@afriframe.com"
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "reservo.bookings"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
