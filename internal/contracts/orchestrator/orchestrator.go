// internal/contracts/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"time"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/common/logger"
	"home-contracts/internal/common/metrics"
	"home-contracts/internal/common/validation"
	"home-contracts/internal/contracts/notify"
	"home-contracts/internal/contracts/prefill"
	"home-contracts/internal/contracts/provider"
	"home-contracts/internal/contracts/store"
	"home-contracts/internal/models"
)

// SubmissionClient is the slice of the provider client the orchestrator
// drives. Retry policy lives here, not in the client.
type SubmissionClient interface {
	CreateSubmission(ctx context.Context, templateID string, submitters []models.Submitter, fields map[string]string, metadata map[string]string) (*models.Envelope, error)
	GetStatus(ctx context.Context, envelopeID string) (models.PackStatus, error)
	GetSubmission(ctx context.Context, envelopeID string) (*provider.Submission, error)
	Download(ctx context.Context, fileRef string) ([]byte, error)
	SigningURL(envelopeID, email string) string
}

// StatusRecorder receives live status observations for the read-side cache.
type StatusRecorder interface {
	Set(ctx context.Context, orderID string, pack models.PackType, status models.PackStatus)
}

// AuditTrail receives contract lifecycle events.
type AuditTrail interface {
	EnvelopeCreated(ctx context.Context, orderID string, pack models.PackType, envelopeID string)
	EnvelopeSuperseded(ctx context.Context, orderID string, pack models.PackType, priorEnvelopeID string, priorStatus models.PackStatus, newEnvelopeID string)
	StatusChanged(ctx context.Context, orderID string, pack models.PackType, envelopeID string, prior, current models.PackStatus)
	AssemblyRecorded(ctx context.Context, orderID string, manifest *models.AssemblyManifest)
}

// Notifier delivers signing links for a freshly created envelope.
type Notifier interface {
	SigningRequested(ctx context.Context, order *models.Order, pack models.PackType, envelope *models.Envelope, signingURL func(email string) string) []notify.Receipt
}

// Config bounds per-call behavior and carries the static pack setup.
type Config struct {
	Templates            map[models.PackType]string
	CounterSigner        models.Submitter
	CallTimeout          time.Duration
	MaxRetries           int
	RetryInitialDelay    time.Duration
	AllowPartialAssembly bool
}

// EnsureResult is the outcome of one EnsurePackEnvelope call.
type EnsureResult struct {
	EnvelopeID  string
	Status      models.PackStatus
	SigningURLs map[models.SubmitterRole]string
	// Created is false on the idempotent short-circuit path.
	Created bool
}

// Orchestrator drives the per-pack envelope state machine:
// NotStarted -> Pending -> {Completed | Declined | Voided}, with terminal
// declined/voided packs restarted on a fresh envelope.
type Orchestrator struct {
	config   Config
	store    store.Store
	provider SubmissionClient
	cache    StatusRecorder
	audit    AuditTrail
	notifier Notifier
	logger   logger.Logger
}

func New(cfg Config, contractStore store.Store, client SubmissionClient, cache StatusRecorder, trail AuditTrail, notifier Notifier, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		config:   cfg,
		store:    contractStore,
		provider: client,
		cache:    cache,
		audit:    trail,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "pack-orchestrator"}),
	}
}

// EnsurePackEnvelope returns the active envelope for (order, pack), creating
// one only when none exists or the recorded one is terminal. When a live,
// non-restartable envelope is already recorded, the call is a pure read: no
// provider write and no store write of a new id.
func (o *Orchestrator) EnsurePackEnvelope(ctx context.Context, pack models.PackType, order *models.Order) (*EnsureResult, error) {
	start := time.Now()
	result, err := o.ensurePackEnvelope(ctx, pack, order)
	o.observe("ensure_pack_envelope", start, err)
	return result, err
}

func (o *Orchestrator) ensurePackEnvelope(ctx context.Context, pack models.PackType, order *models.Order) (*EnsureResult, error) {
	if err := o.validateRequest(pack, order); err != nil {
		return nil, err
	}

	contract, err := o.store.Get(ctx, order.ID)
	if err != nil && !errors.IsCode(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	var priorID string
	var priorStatus models.PackStatus
	if contract != nil {
		existingID, cachedStatus := contract.EnvelopeFor(pack)
		if existingID != "" {
			live, err := o.liveStatus(ctx, existingID)
			if err != nil {
				return nil, err
			}
			o.recordObservation(ctx, order.ID, pack, existingID, cachedStatus, live)

			if !live.Restartable() {
				return &EnsureResult{
					EnvelopeID:  existingID,
					Status:      live,
					SigningURLs: o.signingURLs(existingID, order),
					Created:     false,
				}, nil
			}
			priorID, priorStatus = existingID, live
		}
	}

	templateID := o.config.Templates[pack]
	if templateID == "" {
		return nil, errors.NewConfigurationError("no template configured for pack " + string(pack))
	}

	submitters := o.buildSubmitters(order)
	fields := prefill.Build(pack, *order)
	metadata := map[string]string{"order_id": order.ID, "pack": string(pack)}

	var envelope *models.Envelope
	err = withRetry(ctx, o.logger, "create submission", o.config.MaxRetries, o.config.RetryInitialDelay, func(ctx context.Context) error {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		var err error
		envelope, err = o.provider.CreateSubmission(callCtx, templateID, submitters, fields, metadata)
		o.observeProviderCall("create_submission", err)
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := o.store.UpsertEnvelope(ctx, order.ID, pack, envelope.ID, models.StatusPending); err != nil {
		if errors.IsCode(err, errors.ErrCodeEnvelopeConflict) {
			return o.resolveLostRace(ctx, pack, order, envelope.ID)
		}
		return nil, err
	}

	metrics.EnvelopesCreated.WithLabelValues(string(pack)).Inc()
	if priorID != "" {
		metrics.EnvelopesSuperseded.WithLabelValues(string(pack), string(priorStatus)).Inc()
	}
	if o.cache != nil {
		o.cache.Set(ctx, order.ID, pack, models.StatusPending)
	}
	if o.audit != nil {
		o.audit.EnvelopeCreated(ctx, order.ID, pack, envelope.ID)
		if priorID != "" {
			o.audit.EnvelopeSuperseded(ctx, order.ID, pack, priorID, priorStatus, envelope.ID)
		}
	}
	if o.notifier != nil {
		o.notifier.SigningRequested(ctx, order, pack, envelope, func(email string) string {
			return o.provider.SigningURL(envelope.ID, email)
		})
	}

	o.logger.Info("envelope created", map[string]interface{}{
		"orderId":    order.ID,
		"pack":       string(pack),
		"envelopeId": envelope.ID,
		"superseded": priorID,
	})

	return &EnsureResult{
		EnvelopeID:  envelope.ID,
		Status:      models.StatusPending,
		SigningURLs: o.signingURLs(envelope.ID, order),
		Created:     true,
	}, nil
}

// resolveLostRace handles a concurrent create: another request persisted an
// envelope for this pack first. The local envelope is orphaned at the
// provider; the winner's id is re-read and returned.
func (o *Orchestrator) resolveLostRace(ctx context.Context, pack models.PackType, order *models.Order, orphanedID string) (*EnsureResult, error) {
	o.logger.Warn("concurrent envelope create lost, orphaning local envelope", map[string]interface{}{
		"orderId":            order.ID,
		"pack":               string(pack),
		"orphanedEnvelopeId": orphanedID,
	})

	contract, err := o.store.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	winnerID, status := contract.EnvelopeFor(pack)
	if winnerID == "" {
		return nil, errors.NewEnvelopeConflictError(order.ID, string(pack))
	}

	return &EnsureResult{
		EnvelopeID:  winnerID,
		Status:      status,
		SigningURLs: o.signingURLs(winnerID, order),
		Created:     false,
	}, nil
}

// AllPacksCompleted reports whether every pack independently confirms
// Completed against the provider. Any missing envelope, non-completed
// status, or failed status fetch yields false. The advisory cache is never
// consulted.
func (o *Orchestrator) AllPacksCompleted(ctx context.Context, orderID string) (bool, error) {
	start := time.Now()
	done, err := o.allPacksCompleted(ctx, orderID)
	o.observe("all_packs_completed", start, err)
	return done, err
}

func (o *Orchestrator) allPacksCompleted(ctx context.Context, orderID string) (bool, error) {
	contract, err := o.store.Get(ctx, orderID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}

	for _, pack := range models.AllPacks() {
		envelopeID, cachedStatus := contract.EnvelopeFor(pack)
		if envelopeID == "" {
			return false, nil
		}

		live, err := o.liveStatus(ctx, envelopeID)
		if err != nil {
			o.logger.Warn("status fetch failed, treating pack as incomplete", map[string]interface{}{
				"orderId":    orderID,
				"pack":       string(pack),
				"envelopeId": envelopeID,
				"error":      err.Error(),
			})
			return false, nil
		}
		o.recordObservation(ctx, orderID, pack, envelopeID, cachedStatus, live)

		if live != models.StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// Assemble downloads each pack's signed document and persists the manifest.
// Callers must confirm AllPacksCompleted first; this only checks that all
// three envelope ids are recorded. A pack whose download fails becomes a
// manifest gap; whether gaps fail the call is the partial-assembly policy.
func (o *Orchestrator) Assemble(ctx context.Context, orderID string) (*models.AssemblyManifest, error) {
	start := time.Now()
	manifest, err := o.assemble(ctx, orderID)
	o.observe("assemble", start, err)
	return manifest, err
}

func (o *Orchestrator) assemble(ctx context.Context, orderID string) (*models.AssemblyManifest, error) {
	contract, err := o.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var missingPacks []string
	for _, pack := range models.AllPacks() {
		if id, _ := contract.EnvelopeFor(pack); id == "" {
			missingPacks = append(missingPacks, string(pack))
		}
	}
	if len(missingPacks) > 0 {
		return nil, errors.NewAssemblyPreconditionError(orderID, missingPacks)
	}

	manifest := &models.AssemblyManifest{AssembledAt: time.Now().UTC()}
	for _, pack := range models.AllPacks() {
		envelopeID, _ := contract.EnvelopeFor(pack)
		entry, gapReason := o.fetchPackDocument(ctx, pack, envelopeID)
		if entry != nil {
			manifest.Documents = append(manifest.Documents, *entry)
			continue
		}

		metrics.AssemblyGaps.Inc()
		o.logger.Warn("pack document missing from assembly", map[string]interface{}{
			"orderId":    orderID,
			"pack":       string(pack),
			"envelopeId": envelopeID,
			"reason":     gapReason,
		})
		manifest.Gaps = append(manifest.Gaps, models.ManifestGap{
			Pack:       pack,
			EnvelopeID: envelopeID,
			Reason:     gapReason,
		})
	}

	if manifest.Partial() && !o.config.AllowPartialAssembly {
		missing := make([]string, 0, len(manifest.Gaps))
		for _, gap := range manifest.Gaps {
			missing = append(missing, string(gap.Pack))
		}
		return nil, errors.NewPartialAssemblyError(orderID, missing)
	}

	if err := o.store.RecordAssembly(ctx, orderID, manifest); err != nil {
		return nil, err
	}
	if o.audit != nil {
		o.audit.AssemblyRecorded(ctx, orderID, manifest)
	}
	return manifest, nil
}

func (o *Orchestrator) fetchPackDocument(ctx context.Context, pack models.PackType, envelopeID string) (*models.ManifestEntry, string) {
	var submission *provider.Submission
	err := withRetry(ctx, o.logger, "get submission", o.config.MaxRetries, o.config.RetryInitialDelay, func(ctx context.Context) error {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		var err error
		submission, err = o.provider.GetSubmission(callCtx, envelopeID)
		o.observeProviderCall("get_submission", err)
		return err
	})
	if err != nil {
		return nil, "submission fetch failed: " + err.Error()
	}
	if len(submission.Documents) == 0 {
		return nil, "no documents available"
	}

	doc := submission.Documents[0]
	var data []byte
	err = withRetry(ctx, o.logger, "download document", o.config.MaxRetries, o.config.RetryInitialDelay, func(ctx context.Context) error {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		var err error
		data, err = o.provider.Download(callCtx, doc.URL)
		o.observeProviderCall("download", err)
		return err
	})
	if err != nil {
		return nil, "document download failed: " + err.Error()
	}

	name := doc.Name
	if name == "" {
		name = string(pack) + ".pdf"
	}
	return &models.ManifestEntry{
		Pack:       pack,
		EnvelopeID: envelopeID,
		FileName:   name,
		SizeBytes:  int64(len(data)),
	}, ""
}

func (o *Orchestrator) liveStatus(ctx context.Context, envelopeID string) (models.PackStatus, error) {
	var status models.PackStatus
	err := withRetry(ctx, o.logger, "get status", o.config.MaxRetries, o.config.RetryInitialDelay, func(ctx context.Context) error {
		callCtx, cancel := o.callContext(ctx)
		defer cancel()
		var err error
		status, err = o.provider.GetStatus(callCtx, envelopeID)
		o.observeProviderCall("get_status", err)
		return err
	})
	return status, err
}

// recordObservation refreshes the cached status and emits a status-changed
// audit event when the live status moved since last seen.
func (o *Orchestrator) recordObservation(ctx context.Context, orderID string, pack models.PackType, envelopeID string, cached, live models.PackStatus) {
	if o.cache != nil {
		o.cache.Set(ctx, orderID, pack, live)
	}
	if live == cached {
		return
	}
	if err := o.store.UpdatePackStatus(ctx, orderID, pack, live); err != nil {
		o.logger.Warn("cached status refresh failed", map[string]interface{}{
			"orderId": orderID,
			"pack":    string(pack),
			"error":   err.Error(),
		})
	}
	if o.audit != nil {
		o.audit.StatusChanged(ctx, orderID, pack, envelopeID, cached, live)
	}
}

func (o *Orchestrator) validateRequest(pack models.PackType, order *models.Order) error {
	if !pack.IsValid() {
		return errors.NewValidationError("unknown pack type: " + string(pack))
	}
	if order == nil || order.ID == "" {
		return errors.NewValidationError("order id is required")
	}
	if !validation.ValidateEmail(order.Buyer.Email) {
		return errors.NewValidationError("buyer email is missing or invalid")
	}
	if order.CoBuyer != nil && !validation.ValidateEmail(order.CoBuyer.Email) {
		return errors.NewValidationError("co-buyer email is missing or invalid")
	}
	if !validation.ValidateEmail(o.config.CounterSigner.Email) {
		return errors.NewConfigurationError("counter-signer email is missing or invalid")
	}
	return nil
}

// buildSubmitters yields buyer, co-buyer when the order has one, and the
// counter-signer. Two entries without a co-buyer, three with.
func (o *Orchestrator) buildSubmitters(order *models.Order) []models.Submitter {
	submitters := []models.Submitter{
		{Name: order.Buyer.Name, Email: order.Buyer.Email, Role: models.RoleBuyer},
	}
	if order.CoBuyer != nil {
		submitters = append(submitters, models.Submitter{
			Name: order.CoBuyer.Name, Email: order.CoBuyer.Email, Role: models.RoleCoBuyer,
		})
	}
	submitters = append(submitters, models.Submitter{
		Name: o.config.CounterSigner.Name, Email: o.config.CounterSigner.Email, Role: models.RoleCounterSigner,
	})
	return submitters
}

func (o *Orchestrator) signingURLs(envelopeID string, order *models.Order) map[models.SubmitterRole]string {
	urls := map[models.SubmitterRole]string{
		models.RoleBuyer:         o.provider.SigningURL(envelopeID, order.Buyer.Email),
		models.RoleCounterSigner: o.provider.SigningURL(envelopeID, o.config.CounterSigner.Email),
	}
	if order.CoBuyer != nil {
		urls[models.RoleCoBuyer] = o.provider.SigningURL(envelopeID, order.CoBuyer.Email)
	}
	return urls
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.config.CallTimeout)
}

func (o *Orchestrator) observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.OrchestratorOps.WithLabelValues(operation, outcome).Inc()
	metrics.OrchestratorOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) observeProviderCall(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderCalls.WithLabelValues(operation, outcome).Inc()
}
