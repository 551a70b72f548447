package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/common/logger"
	"home-contracts/internal/models"
)

// Schema is applied once at startup. JSONB maps keep the per-pack envelope
// ids and cached statuses on a single row per order, so the conditional
// upsert is one round trip.
const Schema = `
CREATE TABLE IF NOT EXISTS contracts (
	order_id          TEXT PRIMARY KEY,
	envelope_ids      JSONB NOT NULL DEFAULT '{}'::jsonb,
	pack_status       JSONB NOT NULL DEFAULT '{}'::jsonb,
	version           BIGINT NOT NULL DEFAULT 1,
	assembly_manifest JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "contract-store"}),
	}
}

// EnsureSchema creates the contracts table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return errors.NewStoreError("ensureSchema", err)
	}
	return nil
}

const getQuery = `
SELECT order_id, envelope_ids, pack_status, version, assembly_manifest, created_at, updated_at
FROM contracts WHERE order_id = $1`

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*models.Contract, error) {
	row := s.db.QueryRowContext(ctx, getQuery, orderID)
	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("Contract", orderID)
	}
	if err != nil {
		return nil, errors.NewStoreError("get", err)
	}
	return contract, nil
}

// upsertEnvelopeQuery is the conditional write at the heart of the
// concurrency model. The WHERE clause on the conflict branch only lets the
// update through when the pack has no envelope id yet or its cached status
// is restartable; otherwise zero rows come back and the caller sees a
// conflict.
const upsertEnvelopeQuery = `
INSERT INTO contracts (order_id, envelope_ids, pack_status, version)
VALUES ($1, jsonb_build_object($2::text, $3::text), jsonb_build_object($2::text, $4::text), 1)
ON CONFLICT (order_id) DO UPDATE SET
	envelope_ids = contracts.envelope_ids || jsonb_build_object($2::text, $3::text),
	pack_status  = contracts.pack_status  || jsonb_build_object($2::text, $4::text),
	version      = contracts.version + 1,
	updated_at   = now()
WHERE COALESCE(contracts.envelope_ids->>$2, '') = ''
   OR contracts.pack_status->>$2 IN ('declined', 'voided')
RETURNING order_id, envelope_ids, pack_status, version, assembly_manifest, created_at, updated_at`

func (s *PostgresStore) UpsertEnvelope(ctx context.Context, orderID string, pack models.PackType, envelopeID string, status models.PackStatus) (*models.Contract, error) {
	row := s.db.QueryRowContext(ctx, upsertEnvelopeQuery, orderID, string(pack), envelopeID, string(status))
	contract, err := scanContract(row)
	if err == sql.ErrNoRows {
		s.logger.Warn("conditional envelope write lost", map[string]interface{}{
			"orderId":    orderID,
			"pack":       string(pack),
			"envelopeId": envelopeID,
		})
		return nil, errors.NewEnvelopeConflictError(orderID, string(pack))
	}
	if err != nil {
		return nil, errors.NewStoreError("upsertEnvelope", err)
	}
	return contract, nil
}

const updateStatusQuery = `
UPDATE contracts
SET pack_status = pack_status || jsonb_build_object($2::text, $3::text), updated_at = now()
WHERE order_id = $1`

func (s *PostgresStore) UpdatePackStatus(ctx context.Context, orderID string, pack models.PackType, status models.PackStatus) error {
	res, err := s.db.ExecContext(ctx, updateStatusQuery, orderID, string(pack), string(status))
	if err != nil {
		return errors.NewStoreError("updatePackStatus", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError("updatePackStatus", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("Contract", orderID)
	}
	return nil
}

const recordAssemblyQuery = `
UPDATE contracts
SET assembly_manifest = $2, version = version + 1, updated_at = now()
WHERE order_id = $1`

func (s *PostgresStore) RecordAssembly(ctx context.Context, orderID string, manifest *models.AssemblyManifest) error {
	payload, err := json.Marshal(manifest)
	if err != nil {
		return errors.NewStoreError("recordAssembly", err)
	}

	res, err := s.db.ExecContext(ctx, recordAssemblyQuery, orderID, payload)
	if err != nil {
		return errors.NewStoreError("recordAssembly", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError("recordAssembly", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("Contract", orderID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContract(row rowScanner) (*models.Contract, error) {
	var (
		contract     models.Contract
		envelopeIDs  []byte
		packStatus   []byte
		manifestJSON []byte
	)

	err := row.Scan(
		&contract.OrderID,
		&envelopeIDs,
		&packStatus,
		&contract.Version,
		&manifestJSON,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(envelopeIDs, &contract.EnvelopeIDs); err != nil {
		return nil, fmt.Errorf("decode envelope_ids: %w", err)
	}
	if err := json.Unmarshal(packStatus, &contract.PackStatus); err != nil {
		return nil, fmt.Errorf("decode pack_status: %w", err)
	}
	if len(manifestJSON) > 0 {
		var manifest models.AssemblyManifest
		if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
			return nil, fmt.Errorf("decode assembly_manifest: %w", err)
		}
		contract.AssemblyManifest = &manifest
	}

	return &contract, nil
}
