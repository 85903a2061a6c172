// Package main seeds the first administrator account.
//
// The server never creates accounts on its own, and registration can only
// grant the operator role, so a fresh database needs one admin to promote
// everyone else. Running the command again is a no-op.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"plantops.io/mis/internal/config"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/infrastructure"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
)

const (
	defaultAdminEmail = "admin@plant.local"
	defaultAdminName  = "Plant Administrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	acct, generated, err := loadAdminAccount()
	if err != nil {
		return err
	}

	created, err := seedAdmin(ctx, repository.NewStore(db.Pool), acct, cfg.Security.BcryptCost)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if !created {
		logger.Info("Admin account already exists, skipping", zap.String("email", acct.Email))
		return nil
	}

	fields := []zap.Field{zap.String("email", acct.Email)}
	if generated {
		// Printed once; it is not stored anywhere else.
		fields = append(fields, zap.String("generated_password", acct.Password))
	}
	logger.Info("Seeded admin account", fields...)
	return nil
}

// adminAccount is the account the seed ensures exists.
type adminAccount struct {
	Email    string
	FullName string
	Password string
}

// loadAdminAccount reads SEED_ADMIN_* variables. A random password is
// generated when SEED_ADMIN_PASSWORD is unset.
func loadAdminAccount() (adminAccount, bool, error) {
	acct := adminAccount{
		Email:    envOrDefault("SEED_ADMIN_EMAIL", defaultAdminEmail),
		FullName: envOrDefault("SEED_ADMIN_NAME", defaultAdminName),
		Password: strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD")),
	}
	if acct.Password != "" {
		return acct, false, nil
	}
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return adminAccount{}, false, fmt.Errorf("generate password: %w", err)
	}
	acct.Password = hex.EncodeToString(b)
	return acct, true, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// accountStore is the subset of the repository the seed writes through.
type accountStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateProfile(ctx context.Context, p repository.CreateProfileParams) (*domain.Profile, error)
}

// seedAdmin creates the admin unless the email is taken. It reports whether
// an account was created.
func seedAdmin(ctx context.Context, store accountStore, acct adminAccount, cost int) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(acct.Email))
	exists, err := store.EmailExists(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	_, err = store.CreateProfile(ctx, repository.CreateProfileParams{
		FullName:     acct.FullName,
		Email:        email,
		Role:         domain.RoleAdmin,
		PasswordHash: string(hash),
	})
	if err != nil {
		// Lost a race with a concurrent seed.
		if _, ok := repository.UniqueViolation(err); ok {
			return false, nil
		}
		return false, fmt.Errorf("create profile: %w", err)
	}
	return true, nil
}
