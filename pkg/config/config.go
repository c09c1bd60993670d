package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database  DatabaseConfig
	Warehouse WarehouseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Term      TermConfig
	CAS       CASConfig
	DevAuth   DevAuthConfig
	Email     EmailConfig
	SMTP      SMTPConfig
	SES       SESConfig
	LDAP      LDAPConfig
	Kaltura   KalturaConfig
	Jobs      JobsConfig
	Cache     CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// WarehouseConfig points at the institutional data warehouse that feeds sis_sections.
type WarehouseConfig struct {
	Database  DatabaseConfig
	SISSchema string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TermConfig describes the term currently open for approvals.
type TermConfig struct {
	CurrentTermID int
	Begin         string
	End           string
}

// CASConfig configures single sign-on.
type CASConfig struct {
	ServerURL  string
	ServiceURL string
	Timeout    time.Duration
}

// DevAuthConfig enables password login for non-production environments.
type DevAuthConfig struct {
	Enabled      bool
	PasswordHash string
}

// EmailConfig holds addresses and links used in outbound mail.
type EmailConfig struct {
	Transport         string
	AdminAddress      string
	AdminUID          string
	SupportAddress    string
	RedirectOnTesting string
	SignupBaseURL     string
}

// SMTPConfig configures the SMTP relay transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SESConfig configures the AWS SES transport.
type SESConfig struct {
	Region string
	From   string
}

// LDAPConfig configures the campus directory lookup.
type LDAPConfig struct {
	Host     string
	Port     int
	Bind     string
	Password string
	BaseDN   string
	Timeout  time.Duration
}

// KalturaConfig configures the video platform integration. Disabled by default.
type KalturaConfig struct {
	Enabled     bool
	ServiceURL  string
	PartnerID   string
	AdminSecret string
	Timeout     time.Duration
}

// JobsConfig configures the background job scheduler.
type JobsConfig struct {
	Enabled               bool
	PollInterval          time.Duration
	RefreshWarehouseEvery time.Duration
	QueuedEmailsEvery     time.Duration
	AdminEmailsEvery      time.Duration
	Workers               int
}

// CacheConfig governs redis cache TTLs.
type CacheConfig struct {
	Enabled    bool
	SectionTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Warehouse = WarehouseConfig{
		Database: DatabaseConfig{
			Host:         v.GetString("WAREHOUSE_DB_HOST"),
			Port:         v.GetInt("WAREHOUSE_DB_PORT"),
			User:         v.GetString("WAREHOUSE_DB_USER"),
			Password:     v.GetString("WAREHOUSE_DB_PASSWORD"),
			Name:         v.GetString("WAREHOUSE_DB_NAME"),
			SSLMode:      v.GetString("WAREHOUSE_DB_SSL_MODE"),
			MaxOpenConns: 2,
			MaxIdleConns: 1,
		},
		SISSchema: v.GetString("WAREHOUSE_SIS_SCHEMA"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 20*time.Minute),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Term = TermConfig{
		CurrentTermID: v.GetInt("CURRENT_TERM_ID"),
		Begin:         v.GetString("CURRENT_TERM_BEGIN"),
		End:           v.GetString("CURRENT_TERM_END"),
	}

	cfg.CAS = CASConfig{
		ServerURL:  strings.TrimRight(v.GetString("CAS_SERVER"), "/"),
		ServiceURL: v.GetString("CAS_SERVICE_URL"),
		Timeout:    parseDuration(v.GetString("CAS_TIMEOUT"), 10*time.Second),
	}

	cfg.DevAuth = DevAuthConfig{
		Enabled:      v.GetBool("DEV_AUTH_ENABLED"),
		PasswordHash: v.GetString("DEV_AUTH_PASSWORD_HASH"),
	}

	cfg.Email = EmailConfig{
		Transport:         strings.ToLower(v.GetString("MAIL_TRANSPORT")),
		AdminAddress:      v.GetString("EMAIL_ADMIN"),
		AdminUID:          v.GetString("EMAIL_ADMIN_UID"),
		SupportAddress:    v.GetString("EMAIL_SUPPORT"),
		RedirectOnTesting: v.GetString("EMAIL_REDIRECT_WHEN_TESTING"),
		SignupBaseURL:     strings.TrimRight(v.GetString("SIGNUP_BASE_URL"), "/"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.SES = SESConfig{
		Region: v.GetString("SES_REGION"),
		From:   v.GetString("SMTP_FROM"),
	}

	cfg.LDAP = LDAPConfig{
		Host:     v.GetString("LDAP_HOST"),
		Port:     v.GetInt("LDAP_PORT"),
		Bind:     v.GetString("LDAP_BIND"),
		Password: v.GetString("LDAP_PASSWORD"),
		BaseDN:   v.GetString("LDAP_BASE_DN"),
		Timeout:  parseDuration(v.GetString("LDAP_TIMEOUT"), 5*time.Second),
	}

	cfg.Kaltura = KalturaConfig{
		Enabled:     v.GetBool("KALTURA_ENABLED"),
		ServiceURL:  strings.TrimRight(v.GetString("KALTURA_SERVICE_URL"), "/"),
		PartnerID:   v.GetString("KALTURA_PARTNER_ID"),
		AdminSecret: v.GetString("KALTURA_ADMIN_SECRET"),
		Timeout:     parseDuration(v.GetString("KALTURA_TIMEOUT"), 15*time.Second),
	}

	cfg.Jobs = JobsConfig{
		Enabled:               v.GetBool("JOBS_ENABLED"),
		PollInterval:          parseDuration(v.GetString("JOBS_POLL_INTERVAL"), time.Minute),
		RefreshWarehouseEvery: parseDuration(v.GetString("JOB_REFRESH_WAREHOUSE_INTERVAL"), 24*time.Hour),
		QueuedEmailsEvery:     parseDuration(v.GetString("JOB_QUEUED_EMAILS_INTERVAL"), 15*time.Minute),
		AdminEmailsEvery:      parseDuration(v.GetString("JOB_ADMIN_EMAILS_INTERVAL"), time.Hour),
		Workers:               v.GetInt("JOBS_WORKERS"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_CACHE"),
		SectionTTL: parseDuration(v.GetString("SECTION_CACHE_TTL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("TIMEZONE", "America/Los_Angeles")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "coursecap")
	v.SetDefault("DB_PASSWORD", "coursecap")
	v.SetDefault("DB_NAME", "coursecap")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("WAREHOUSE_DB_HOST", "localhost")
	v.SetDefault("WAREHOUSE_DB_PORT", 5432)
	v.SetDefault("WAREHOUSE_DB_USER", "coursecap")
	v.SetDefault("WAREHOUSE_DB_PASSWORD", "coursecap")
	v.SetDefault("WAREHOUSE_DB_NAME", "data_loch")
	v.SetDefault("WAREHOUSE_DB_SSL_MODE", "disable")
	v.SetDefault("WAREHOUSE_SIS_SCHEMA", "sis_data")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "20m")
	v.SetDefault("JWT_ISSUER", "coursecap-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CURRENT_TERM_ID", 2202)
	v.SetDefault("CURRENT_TERM_BEGIN", "2020-01-21")
	v.SetDefault("CURRENT_TERM_END", "2020-05-08")

	v.SetDefault("CAS_SERVER", "https://auth-test.berkeley.edu/cas")
	v.SetDefault("CAS_SERVICE_URL", "http://localhost:8080/cas/callback")
	v.SetDefault("CAS_TIMEOUT", "10s")

	v.SetDefault("DEV_AUTH_ENABLED", false)
	v.SetDefault("DEV_AUTH_PASSWORD_HASH", "")

	v.SetDefault("MAIL_TRANSPORT", "log")
	v.SetDefault("EMAIL_ADMIN", "coursecap-admin@example.edu")
	v.SetDefault("EMAIL_ADMIN_UID", "0")
	v.SetDefault("EMAIL_SUPPORT", "coursecap-support@example.edu")
	v.SetDefault("EMAIL_REDIRECT_WHEN_TESTING", "")
	v.SetDefault("SIGNUP_BASE_URL", "http://localhost:8080")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 25)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "coursecap@example.edu")
	v.SetDefault("SES_REGION", "us-west-2")

	v.SetDefault("LDAP_HOST", "ldap-test.berkeley.edu")
	v.SetDefault("LDAP_PORT", 636)
	v.SetDefault("LDAP_BIND", "")
	v.SetDefault("LDAP_PASSWORD", "")
	v.SetDefault("LDAP_BASE_DN", "ou=people,dc=berkeley,dc=edu")
	v.SetDefault("LDAP_TIMEOUT", "5s")

	v.SetDefault("KALTURA_ENABLED", false)
	v.SetDefault("KALTURA_SERVICE_URL", "https://www.kaltura.com")
	v.SetDefault("KALTURA_PARTNER_ID", "")
	v.SetDefault("KALTURA_ADMIN_SECRET", "")
	v.SetDefault("KALTURA_TIMEOUT", "15s")

	v.SetDefault("JOBS_ENABLED", false)
	v.SetDefault("JOBS_POLL_INTERVAL", "1m")
	v.SetDefault("JOB_REFRESH_WAREHOUSE_INTERVAL", "24h")
	v.SetDefault("JOB_QUEUED_EMAILS_INTERVAL", "15m")
	v.SetDefault("JOB_ADMIN_EMAILS_INTERVAL", "1h")
	v.SetDefault("JOBS_WORKERS", 1)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("SECTION_CACHE_TTL", "24h")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
