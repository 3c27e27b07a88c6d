package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"hygienix/backend/internal/auth"
	"hygienix/backend/internal/otp"
	"hygienix/backend/internal/repository"
	"hygienix/backend/internal/service"
)

// OpenStore opens and migrates the database named by cfg.
func OpenStore(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == repository.DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	if err := repository.Migrate(ctx, db, cfg.DBDriver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewAuthService wires the account flows over db. The server and the operator
// CLI share it.
func NewAuthService(cfg Config, db *sql.DB, notifier service.Notifier, logger *slog.Logger) *service.AuthService {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	issuer := otp.NewIssuer(otp.Config{
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.OTPMaxAttempts,
		ResendInterval: cfg.OTPResendInterval,
	}, repository.NewSQLOTPRepository(db))
	return service.NewAuthService(repository.NewSQLUserRepository(db), tokens, issuer, notifier, service.AuthConfig{
		AutoProvision:        cfg.AutoProvisionOTPUsers,
		SyntheticEmailDomain: cfg.SyntheticEmailDomain,
		ResetTTL:             cfg.PasswordResetTTL,
		FrontendURL:          cfg.FrontendURL,
	}, logger)
}
