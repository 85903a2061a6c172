// Package main seeds deterministic fixtures for live end-to-end tests.
//
// This command is test-environment only and is intentionally idempotent.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"plantops.io/mis/internal/config"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/infrastructure"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
)

const (
	defaultPassword  = "e2e-pass-123"
	defaultEmailHost = "e2e.plant.local"
	defaultAssetCode = "E2E-CNC-01"
	defaultPartCode  = "E2E-BRG-6204"
	defaultPMTitle   = "E2E monthly lubrication"
	defaultBUName    = "E2E Assembly"
)

type fixtureConfig struct {
	Password  string
	EmailHost string
	AssetCode string
	PartCode  string
	PMTitle   string
	BUName    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "e2e-seed error: %v\n", err)
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
	if err := db.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fx := loadFixtureConfig()
	store := repository.NewStore(db.Pool)

	if err := ensureUsers(ctx, store, fx, cfg.Security.BcryptCost); err != nil {
		return fmt.Errorf("ensure users: %w", err)
	}
	asset, err := ensureAsset(ctx, store, fx)
	if err != nil {
		return fmt.Errorf("ensure asset: %w", err)
	}
	if err := ensureSparePart(ctx, store, fx); err != nil {
		return fmt.Errorf("ensure spare part: %w", err)
	}
	if err := ensurePMSchedule(ctx, store, fx, asset.ID); err != nil {
		return fmt.Errorf("ensure pm schedule: %w", err)
	}

	logger.Info("E2E fixtures ready",
		zap.String("asset_code", fx.AssetCode),
		zap.String("part_code", fx.PartCode),
		zap.String("email_host", fx.EmailHost),
	)
	return nil
}

func loadFixtureConfig() fixtureConfig {
	return fixtureConfig{
		Password:  envOrDefault("E2E_PASSWORD", defaultPassword),
		EmailHost: envOrDefault("E2E_EMAIL_HOST", defaultEmailHost),
		AssetCode: envOrDefault("E2E_ASSET_CODE", defaultAssetCode),
		PartCode:  envOrDefault("E2E_PART_CODE", defaultPartCode),
		PMTitle:   envOrDefault("E2E_PM_TITLE", defaultPMTitle),
		BUName:    envOrDefault("E2E_BU_NAME", defaultBUName),
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// fixtureStore is the subset of the repository the fixtures write through.
type fixtureStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateProfile(ctx context.Context, p repository.CreateProfileParams) (*domain.Profile, error)
	GetAssetByQR(ctx context.Context, code string) (*domain.Asset, error)
	CreateAsset(ctx context.Context, p repository.CreateAssetParams) (*domain.Asset, error)
	ListSpareParts(ctx context.Context, f repository.SpareFilter) ([]domain.SparePart, error)
	CreateSparePart(ctx context.Context, p repository.CreateSpareParams) (*domain.SparePart, error)
	ListPMSchedules(ctx context.Context, f repository.PMFilter) ([]domain.PMSchedule, error)
	CreatePMSchedule(ctx context.Context, p repository.CreatePMParams) (*domain.PMSchedule, error)
}

// fixtureEmail is e2e-<role>@host, one account per role.
func fixtureEmail(fx fixtureConfig, role domain.Role) string {
	return fmt.Sprintf("e2e-%s@%s", role, fx.EmailHost)
}

func ensureUsers(ctx context.Context, store fixtureStore, fx fixtureConfig, cost int) error {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	var hash []byte
	for _, role := range domain.Roles() {
		email := fixtureEmail(fx, role)
		exists, err := store.EmailExists(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if hash == nil {
			if hash, err = bcrypt.GenerateFromPassword([]byte(fx.Password), cost); err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
		}
		_, err = store.CreateProfile(ctx, repository.CreateProfileParams{
			FullName:     "E2E " + string(role),
			Email:        email,
			Role:         role,
			PasswordHash: string(hash),
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", role, err)
		}
		logger.Info("Seeded e2e user", zap.String("email", email), zap.String("role", string(role)))
	}
	return nil
}

func ensureAsset(ctx context.Context, store fixtureStore, fx fixtureConfig) (*domain.Asset, error) {
	existing, err := store.GetAssetByQR(ctx, fx.AssetCode)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return store.CreateAsset(ctx, repository.CreateAssetParams{
		AssetCode:     fx.AssetCode,
		AssetName:     "E2E CNC lathe",
		AssetLocation: "Bay 1",
		BUName:        fx.BUName,
		AssetType:     domain.AssetTypeMachine,
		Manufacturer:  "E2E Tools",
		AssetStatus:   domain.AssetStatusActive,
		QRCode:        "QR-" + fx.AssetCode,
	})
}

func ensureSparePart(ctx context.Context, store fixtureStore, fx fixtureConfig) error {
	parts, err := store.ListSpareParts(ctx, repository.SpareFilter{Search: fx.PartCode})
	if err != nil {
		return err
	}
	for _, p := range parts {
		if p.PartCode == fx.PartCode {
			return nil
		}
	}
	_, err = store.CreateSparePart(ctx, repository.CreateSpareParams{
		PartCode:      fx.PartCode,
		PartName:      "E2E deep groove bearing",
		PartNo:        "6204-2RS",
		MinLevel:      2,
		ReorderLevel:  5,
		CurrentStock:  10,
		UnitCost:      decimal.RequireFromString("4.75"),
		Supplier:      "E2E Bearings",
		SpareLocation: "Rack A1",
		BUName:        fx.BUName,
	})
	return err
}

func ensurePMSchedule(ctx context.Context, store fixtureStore, fx fixtureConfig, assetID string) error {
	schedules, err := store.ListPMSchedules(ctx, repository.PMFilter{AssetID: assetID})
	if err != nil {
		return err
	}
	for _, s := range schedules {
		if s.PMTitle == fx.PMTitle {
			return nil
		}
	}
	days, err := domain.FrequencyDays("monthly")
	if err != nil {
		return err
	}
	next := domain.Today().AddDays(days)
	_, err = store.CreatePMSchedule(ctx, repository.CreatePMParams{
		AssetID:           assetID,
		PMTitle:           fx.PMTitle,
		FrequencyInterval: "monthly",
		FrequencyDays:     days,
		NextPMDate:        &next,
		ResponsiblePerson: "E2E engineer",
		Status:            domain.PMScheduled,
	})
	return err
}
