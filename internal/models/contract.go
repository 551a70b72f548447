// internal/models/contract.go
package models

import "time"

// PackType identifies one of the three legally distinct document packs.
// All three are required before a contract can be assembled.
type PackType string

const (
	PackAgreement PackType = "agreement"
	PackDelivery  PackType = "delivery_site_readiness"
	PackFinal     PackType = "final_acknowledgments"
)

// AllPacks lists every required pack in a stable order.
func AllPacks() []PackType {
	return []PackType{PackAgreement, PackDelivery, PackFinal}
}

func (p PackType) IsValid() bool {
	switch p {
	case PackAgreement, PackDelivery, PackFinal:
		return true
	}
	return false
}

// PackStatus is the lifecycle state of a single pack's envelope.
type PackStatus string

const (
	StatusNotStarted PackStatus = "not_started"
	StatusPending    PackStatus = "pending"
	StatusCompleted  PackStatus = "completed"
	StatusDeclined   PackStatus = "declined"
	StatusVoided     PackStatus = "voided"
)

// IsTerminal reports whether the status ends the envelope's lifecycle.
// A terminal envelope is superseded by a fresh one on the next request.
func (s PackStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDeclined || s == StatusVoided
}

// Restartable reports whether a new envelope may replace this one.
func (s PackStatus) Restartable() bool {
	return s == StatusDeclined || s == StatusVoided
}

// SubmitterRole is the fixed set of signing parties on an envelope.
type SubmitterRole string

const (
	RoleBuyer         SubmitterRole = "buyer"
	RoleCoBuyer       SubmitterRole = "cobuyer"
	RoleCounterSigner SubmitterRole = "counter_signer"
)

// Submitter is one party attached to an envelope.
type Submitter struct {
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Role  SubmitterRole `json:"role"`
}

// Envelope is the normalized view of a provider-side signing session.
// Signing URLs are recomputed from the id and submitter email, never stored.
type Envelope struct {
	ID         string      `json:"id"`
	Submitters []Submitter `json:"submitters"`
	Status     PackStatus  `json:"status"`
}

// Contract is the persisted per-order aggregate tracking envelope ids and
// cached statuses across all packs. The cached status is advisory; callers
// reconcile against the provider before trusting it. Invariant: at most one
// non-terminal envelope id per pack.
type Contract struct {
	OrderID          string                  `json:"orderId"`
	EnvelopeIDs      map[PackType]string     `json:"envelopeIds"`
	PackStatus       map[PackType]PackStatus `json:"packStatus"`
	Version          int64                   `json:"version"`
	AssemblyManifest *AssemblyManifest       `json:"assemblyManifest,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// EnvelopeFor returns the recorded envelope id for a pack and its cached
// status, or ("", StatusNotStarted) when none is recorded.
func (c *Contract) EnvelopeFor(pack PackType) (string, PackStatus) {
	if c == nil {
		return "", StatusNotStarted
	}
	id, ok := c.EnvelopeIDs[pack]
	if !ok || id == "" {
		return "", StatusNotStarted
	}
	status, ok := c.PackStatus[pack]
	if !ok {
		status = StatusPending
	}
	return id, status
}

// AssemblyManifest lists the downloaded signed documents collected once the
// packs completed, plus any gaps left by per-pack download failures.
type AssemblyManifest struct {
	Documents   []ManifestEntry `json:"documents"`
	Gaps        []ManifestGap   `json:"gaps,omitempty"`
	AssembledAt time.Time       `json:"assembledAt"`
}

type ManifestEntry struct {
	Pack       PackType `json:"pack"`
	EnvelopeID string   `json:"envelopeId"`
	FileName   string   `json:"fileName"`
	SizeBytes  int64    `json:"sizeBytes"`
}

// ManifestGap records a pack whose signed document could not be fetched
// during assembly.
type ManifestGap struct {
	Pack       PackType `json:"pack"`
	EnvelopeID string   `json:"envelopeId"`
	Reason     string   `json:"reason"`
}

func (m *AssemblyManifest) Partial() bool {
	return m != nil && len(m.Gaps) > 0
}
