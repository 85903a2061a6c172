// Package modules contains the domain-oriented dependency modules wired by
// the composition root.
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"plantops.io/mis/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers) error

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}

// Starter is implemented by modules that run background work of their own.
type Starter interface {
	Start(context.Context) error
}
