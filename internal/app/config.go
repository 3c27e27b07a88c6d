package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // DB_TIMEZONE must resolve on hosts without zoneinfo

	"github.com/kelseyhightower/envconfig"

	"hygienix/backend/internal/repository"
)

type Config struct {
	AppPort string `envconfig:"APP_PORT" default:"8080"`

	// DB
	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     string `envconfig:"DB_PORT" default:"3306"`
	DBName     string `envconfig:"DB_NAME" default:"hygienix"`
	DBUser     string `envconfig:"DB_USER" default:"hygienix"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"hygienix"`
	DBTimezone string `envconfig:"DB_TIMEZONE" default:"Asia/Kolkata"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"hygienix.db"`

	// Tokens
	JWTSecret string        `envconfig:"JWT_SECRET" default:"dev_jwt_secret_change_me"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"168h"`

	AdminInitEnabled  bool   `envconfig:"ADMIN_INIT_ENABLED" default:"false"`
	AdminInitEmail    string `envconfig:"ADMIN_INIT_EMAIL"`
	AdminInitPhone    string `envconfig:"ADMIN_INIT_PHONE"`
	AdminInitPassword string `envconfig:"ADMIN_INIT_PASSWORD"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Chat channel
	TwilioAccountSID     string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppNumber string `envconfig:"TWILIO_WHATSAPP_NUMBER"`
	AdminWhatsAppNumber  string `envconfig:"ADMIN_WHATSAPP_NUMBER"`
	DefaultCountryCode   string `envconfig:"DEFAULT_COUNTRY_CODE" default:"91"`

	// Email channel
	SMTPHost   string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort   int    `envconfig:"SMTP_PORT" default:"587"`
	EmailUser  string `envconfig:"EMAIL_USER"`
	EmailPass  string `envconfig:"EMAIL_PASS"`
	EmailFrom  string `envconfig:"EMAIL_FROM"`
	AdminEmail string `envconfig:"ADMIN_EMAIL" default:"admin@hygienix.in"`

	// Event bus; empty URL disables the channel
	RabbitURL      string `envconfig:"RABBIT_URL"`
	NotifyExchange string `envconfig:"NOTIFY_EXCHANGE" default:"hygienix.events"`

	NotifyWorkers   int           `envconfig:"NOTIFY_WORKERS" default:"4"`
	NotifyQueueSize int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"256"`
	NotifyTimeout   time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`

	OTPTTL            time.Duration `envconfig:"OTP_TTL" default:"5m"`
	OTPMaxAttempts    int           `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`
	OTPResendInterval time.Duration `envconfig:"OTP_RESEND_INTERVAL" default:"30s"`

	AutoProvisionOTPUsers bool          `envconfig:"AUTO_PROVISION_OTP_USERS" default:"true"`
	SyntheticEmailDomain  string        `envconfig:"SYNTHETIC_EMAIL_DOMAIN" default:"hygienix.in"`
	FrontendURL           string        `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
	// CORSOrigins lists browser origins allowed to call the API. Empty means
	// FrontendURL only; "*" reflects any origin.
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
	PasswordResetTTL      time.Duration `envconfig:"PASSWORD_RESET_TTL" default:"1h"`
}

func LoadConfig() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case repository.DriverMySQL, repository.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.DBDriver == repository.DriverMySQL {
		if _, err := time.LoadLocation(c.DBTimezone); err != nil {
			return fmt.Errorf("DB_TIMEZONE: %w", err)
		}
	}
	return nil
}

// DSN returns the data source name for the configured driver. MySQL connections
// report matched rather than changed rows so guarded updates can tell a
// missing row from a no-op.
func (c Config) DSN() string {
	if c.DBDriver == repository.DriverSQLite {
		return c.SQLitePath + "?_busy_timeout=5000"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName +
		"?parseTime=true&charset=utf8mb4&clientFoundRows=true&loc=" + url.QueryEscape(c.DBTimezone) +
		"&time_zone=" + url.QueryEscape("'"+zoneOffset(c.DBTimezone, time.Now())+"'")
}

// zoneOffset formats the UTC offset of the named zone at t as MySQL expects
// it for the session time_zone, so column defaults such as CURRENT_TIMESTAMP
// land in the same zone the driver reads them back in.
func zoneOffset(name string, t time.Time) string {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "+00:00"
	}
	_, offset := t.In(loc).Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offset/3600, offset%3600/60)
}
