package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaddad2189/sfconnect-v11/internal/auth"
	"github.com/shaddad2189/sfconnect-v11/internal/auth/mfa"
	"github.com/shaddad2189/sfconnect-v11/internal/auth/token"
	"github.com/shaddad2189/sfconnect-v11/internal/driver"
	"github.com/shaddad2189/sfconnect-v11/internal/migrations"
	"github.com/shaddad2189/sfconnect-v11/internal/server"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

func main() {
	cfg := must(readConfig())

	logger := initLogger(cfg.Environment)

	db := initDB(cfg)
	defer db.Close()

	setupStorage := storage.NewSetup(db)
	userStorage := storage.NewUser(db)
	activityStorage := storage.NewActivity(db)

	secretStore := token.NewSecretStore(setupStorage)
	jwtSvc := token.NewJWTService(cfg.AppName, secretStore)

	userService := auth.NewUserService(logger, userStorage, jwtSvc)
	mfaEngine := mfa.NewEngine(logger, userStorage, mfa.Config{Issuer: cfg.MFA.Issuer})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Materializes the signing secret before the first request; a second
	// process racing here settles on the same stored value.
	if _, err := secretStore.SigningSecret(ctx); err != nil {
		panic(err)
	}

	if err := userService.EnsureBootstrapAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword); err != nil {
		panic(err)
	}

	handler := server.NewHandler(logger, userService, mfaEngine, jwtSvc, activityStorage, cfg.Session.CookieName)

	handler.Run(ctx, net.JoinHostPort(cfg.Server.Host, cfg.Server.Port))
}

func must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}

	return val
}

func initLogger(env string) *slog.Logger {
	if env == "dev" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func initDB(cfg Config) *sql.DB {
	db := must(driver.NewSQLite(cfg.Database.Name))

	if err := migrations.Migrate(context.Background(), db, "sqlite"); err != nil {
		panic(err)
	}

	return db
}
