package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/riverqueue/river"

	"plantops.io/mis/internal/api/handlers"
	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/service"
)

// GovernanceModule owns identity: accounts, token issue and revocation,
// and the audit trail.
type GovernanceModule struct {
	infra *Infrastructure
	auth  *service.AuthService
}

// NewGovernanceModule builds the auth service from the security settings.
func NewGovernanceModule(infra *Infrastructure) (*GovernanceModule, error) {
	if infra == nil || infra.Config == nil || infra.Store == nil {
		return nil, fmt.Errorf("governance module requires config and store")
	}
	sec := infra.Config.Security

	openRole := domain.RoleOperator
	if raw := strings.TrimSpace(sec.OpenRegistration); raw != "" {
		role, err := domain.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("security.open_registration_role: %w", err)
		}
		openRole = role
	}

	auth := service.NewAuthService(infra.Store, service.AuthConfig{
		JWT:                  infra.JWT,
		BcryptCost:           sec.BcryptCost,
		MinPasswordLength:    sec.MinPasswordLength,
		OpenRegistrationRole: openRole,
	}, infra.AuditLogger)

	return &GovernanceModule{infra: infra, auth: auth}, nil
}

func (m *GovernanceModule) Name() string { return "governance" }

// Auth is the principal loader for the authentication middleware.
func (m *GovernanceModule) Auth() *service.AuthService { return m.auth }

func (m *GovernanceModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Auth = m.auth
	deps.Revoker = m.infra.Revoker
	deps.Audit = m.infra.AuditLogger
	if m.infra.Redis != nil {
		if deps.HealthChecks == nil {
			deps.HealthChecks = map[string]handlers.HealthCheck{}
		}
		client := m.infra.Redis
		deps.HealthChecks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
}

func (m *GovernanceModule) RegisterWorkers(_ *river.Workers) error { return nil }

func (m *GovernanceModule) Shutdown(context.Context) error { return nil }
