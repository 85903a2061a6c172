package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"plantops.io/mis/internal/api/middleware"
	"plantops.io/mis/internal/config"
	"plantops.io/mis/internal/governance/audit"
	"plantops.io/mis/internal/infrastructure"
	"plantops.io/mis/internal/pkg/worker"
	"plantops.io/mis/internal/repository"
	"plantops.io/mis/internal/service"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Pool        *pgxpool.Pool
	Store       *repository.Store
	Redis       *redis.Client
	Revoker     service.Revoker
	JWT         middleware.JWTConfig
	RiverClient *river.Client[pgx.Tx]
	AuditLogger *audit.Logger
}

// NewInfrastructure initializes DB, pools, Redis and shared services.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Dev-mode: apply the schema and River's queue tables on boot.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		IngestPoolSize:  cfg.Worker.IngestPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	redisClient, err := infrastructure.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	revoker := service.NewRevoker(redisClient)
	jwtCfg, err := NewJWTConfig(cfg.Security, revoker)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		pools.Shutdown()
		db.Close()
		return nil, err
	}

	store := repository.NewStore(db.Pool)
	return &Infrastructure{
		Config:      cfg,
		DB:          db,
		Pools:       pools,
		Pool:        db.Pool,
		Store:       store,
		Redis:       redisClient,
		Revoker:     revoker,
		JWT:         jwtCfg,
		AuditLogger: audit.NewLogger(store),
	}, nil
}

// NewJWTConfig builds the token settings shared by login and the
// authentication middleware.
func NewJWTConfig(sec config.SecurityConfig, revoker middleware.RevocationChecker) (middleware.JWTConfig, error) {
	ttl, err := sec.TokenTTL()
	if err != nil {
		return middleware.JWTConfig{}, err
	}
	verificationKeys := make([][]byte, 0, len(sec.JWTVerificationKeys))
	for _, key := range sec.JWTVerificationKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:        []byte(sec.JWTSecret),
		VerificationKeys:  verificationKeys,
		Issuer:            sec.JWTIssuer,
		Audience:          sec.JWTAudience,
		ExpiresIn:         ttl,
		RevocationChecker: revoker,
	}, nil
}

// InitRiver initializes the River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic []*river.PeriodicJob) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
