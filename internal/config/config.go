package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strings"
	"time"

	"bibliotech/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Auth         AuthConfig         `yaml:"auth"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Loans        LoansConfig        `yaml:"loans"`
	Exports      ExportConfig       `yaml:"exports"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	// Admins are emails that get the admin role on registration or login.
	Admins []string `yaml:"admins"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
}

// ConnString returns the DSN, building a URL from the discrete fields when
// no DSN is configured.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
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

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
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

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies are addresses or CIDRs whose X-Forwarded-For header is
	// believed. Empty means the remote address is always the client.
	TrustedProxies []string      `yaml:"trusted_proxies"`
	IdleTTL        time.Duration `yaml:"idle_ttl"`
}

// TrustedPrefixes parses TrustedProxies; a bare address becomes a single-host
// prefix.
func (c APIRateLimitConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type AuthConfig struct {
	JWTSecret       string            `yaml:"jwt_secret"`
	Issuer          string            `yaml:"issuer"`
	TokenTTL        time.Duration     `yaml:"token_ttl"`
	PresenceTTL     time.Duration     `yaml:"presence_ttl"`
	LoginRateLimit  int               `yaml:"login_rate_limit"`
	LoginRateWindow time.Duration     `yaml:"login_rate_window"`
	Google          GoogleOAuthConfig `yaml:"google"`
}

type GoogleOAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

func (g GoogleOAuthConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type ReservationsConfig struct {
	PickupWindow  time.Duration `yaml:"pickup_window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	WorkerEnabled *bool         `yaml:"worker_enabled"`
}

// WorkerOn reports whether the lifecycle worker should run; it is on unless
// explicitly disabled.
func (r ReservationsConfig) WorkerOn() bool {
	return r.WorkerEnabled == nil || *r.WorkerEnabled
}

type LoansConfig struct {
	Period time.Duration `yaml:"period"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type CatalogConfig struct {
	SeedPath string `yaml:"seed_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
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

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite3")
		}
	case DriverPostgres, DriverPgx:
		pg := c.Database.Postgres
		if pg.DSN == "" && (pg.Host == "" || pg.DBName == "") {
			return errors.New("database.postgres needs dsn or host and dbname")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}

	if c.Reservations.PickupWindow <= 0 {
		return errors.New("reservations.pickup_window must be positive")
	}

	if _, err := c.API.RateLimit.TrustedPrefixes(); err != nil {
		return fmt.Errorf("api.rate_limit: %w", err)
	}

	if c.API.GRPC.TLS.Enabled && (c.API.GRPC.TLS.CertFile == "" || c.API.GRPC.TLS.KeyFile == "") {
		return errors.New("grpc tls enabled but cert_file/key_file not set")
	}

	return nil
}

// IsAdminEmail reports whether email is listed in admins.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.Admins {
		if strings.ToLower(strings.TrimSpace(admin)) == email {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bibliotech"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 10
	}
	if c.Database.Postgres.MaxConnLifetime == 0 {
		c.Database.Postgres.MaxConnLifetime = time.Hour
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
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	if c.Auth.Issuer == "" {
		c.Auth.Issuer = c.App.Name
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = models.DefaultTokenTTL
	}
	if c.Auth.PresenceTTL == 0 {
		c.Auth.PresenceTTL = models.DefaultPresenceTTL
	}
	if c.Auth.LoginRateLimit == 0 {
		c.Auth.LoginRateLimit = models.LoginRateLimit
	}
	if c.Auth.LoginRateWindow == 0 {
		c.Auth.LoginRateWindow = models.LoginRateWindow
	}

	if c.Reservations.PickupWindow == 0 {
		c.Reservations.PickupWindow = models.DefaultPickupWindow
	}
	if c.Reservations.SweepInterval == 0 {
		c.Reservations.SweepInterval = models.DefaultSweepInterval
	}
	if c.Loans.Period == 0 {
		c.Loans.Period = models.DefaultLoanPeriod
	}
}
