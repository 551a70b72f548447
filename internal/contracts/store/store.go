// Package store persists the per-order Contract aggregate. The write path
// is deliberately narrow: envelope ids enter through a conditional upsert
// so concurrent callers cannot both record an envelope for the same pack.
package store

import (
	"context"

	"home-contracts/internal/models"
)

// Store is the persistence boundary for Contract records. Implementations
// must guarantee UpsertEnvelope is conditional: it succeeds only when the
// target pack currently has no envelope id or its recorded status is
// restartable (declined/voided). A lost race returns an envelope-conflict
// error so the caller re-reads instead of orphaning a provider-side
// envelope.
type Store interface {
	// Get returns the contract for an order, or a not-found error.
	Get(ctx context.Context, orderID string) (*models.Contract, error)

	// UpsertEnvelope conditionally records a fresh envelope id for a pack,
	// creating the contract lazily on first use. The returned contract
	// reflects the write. Bumps the version.
	UpsertEnvelope(ctx context.Context, orderID string, pack models.PackType, envelopeID string, status models.PackStatus) (*models.Contract, error)

	// UpdatePackStatus refreshes the cached status for a pack. The cache is
	// advisory; this never supersedes an envelope id.
	UpdatePackStatus(ctx context.Context, orderID string, pack models.PackType, status models.PackStatus) error

	// RecordAssembly persists the assembly manifest. Bumps the version.
	RecordAssembly(ctx context.Context, orderID string, manifest *models.AssemblyManifest) error
}
