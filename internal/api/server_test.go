// internal/api/server_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/common/logger"
	"home-contracts/internal/contracts/orchestrator"
	"home-contracts/internal/models"
)

// ==========================
// Fakes
// ==========================

type fakeOrchestrator struct {
	ensureResult *orchestrator.EnsureResult
	ensureErr    error
	completed    bool
	completedErr error
	manifest     *models.AssemblyManifest
	assembleErr  error
}

func (f *fakeOrchestrator) EnsurePackEnvelope(_ context.Context, pack models.PackType, order *models.Order) (*orchestrator.EnsureResult, error) {
	if !pack.IsValid() {
		return nil, errors.NewValidationError("unknown pack type: " + string(pack))
	}
	if order.Buyer.Email == "" {
		return nil, errors.NewValidationError("buyer email is missing or invalid")
	}
	return f.ensureResult, f.ensureErr
}

func (f *fakeOrchestrator) AllPacksCompleted(_ context.Context, _ string) (bool, error) {
	return f.completed, f.completedErr
}

func (f *fakeOrchestrator) Assemble(_ context.Context, _ string) (*models.AssemblyManifest, error) {
	return f.manifest, f.assembleErr
}

type fakeContractStore struct {
	contracts     map[string]*models.Contract
	statusUpdates []string
}

func (s *fakeContractStore) Get(_ context.Context, orderID string) (*models.Contract, error) {
	contract, ok := s.contracts[orderID]
	if !ok {
		return nil, errors.NewNotFoundError("Contract", orderID)
	}
	return contract, nil
}

func (s *fakeContractStore) UpsertEnvelope(_ context.Context, _ string, _ models.PackType, _ string, _ models.PackStatus) (*models.Contract, error) {
	return nil, errors.NewStoreError("upsertEnvelope", assert.AnError)
}

func (s *fakeContractStore) UpdatePackStatus(_ context.Context, orderID string, pack models.PackType, status models.PackStatus) error {
	contract, ok := s.contracts[orderID]
	if !ok {
		return errors.NewNotFoundError("Contract", orderID)
	}
	contract.PackStatus[pack] = status
	s.statusUpdates = append(s.statusUpdates, orderID+"/"+string(pack)+"/"+string(status))
	return nil
}

func (s *fakeContractStore) RecordAssembly(_ context.Context, _ string, _ *models.AssemblyManifest) error {
	return nil
}

type statusChange struct {
	orderID string
	pack    models.PackType
	prior   models.PackStatus
	current models.PackStatus
}

type fakeTrail struct {
	changes []statusChange
}

func (f *fakeTrail) EnvelopeCreated(context.Context, string, models.PackType, string) {}
func (f *fakeTrail) EnvelopeSuperseded(context.Context, string, models.PackType, string, models.PackStatus, string) {
}
func (f *fakeTrail) AssemblyRecorded(context.Context, string, *models.AssemblyManifest) {}

func (f *fakeTrail) StatusChanged(_ context.Context, orderID string, pack models.PackType, _ string, prior, current models.PackStatus) {
	f.changes = append(f.changes, statusChange{orderID: orderID, pack: pack, prior: prior, current: current})
}

// ==========================
// Test Helper Functions
// ==========================

const testWebhookSecret = "whs-test"

func newTestServer(t *testing.T, orch PackOrchestrator, contractStore *fakeContractStore) (*httptest.Server, *fakeTrail) {
	if contractStore == nil {
		contractStore = &fakeContractStore{contracts: map[string]*models.Contract{}}
	}
	trail := &fakeTrail{}
	log := logger.NewZapAdapter(zaptest.NewLogger(t))
	server := NewServer(orch, contractStore, nil, trail, testWebhookSecret, log)
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)
	return ts, trail
}

func postJSON(t *testing.T, url string, payload interface{}, headers map[string]string) *http.Response {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func validOrderPayload() map[string]interface{} {
	return map[string]interface{}{
		"id": "ORD-1042",
		"buyer": map[string]interface{}{
			"name":  "Ana Whitfield",
			"email": "ana@example.com",
		},
		"modelDescription": "Cedar Ridge 2BR",
	}
}

// ==========================
// Envelope endpoint
// ==========================

func TestHandleEnsureEnvelope_Created(t *testing.T) {
	orch := &fakeOrchestrator{
		ensureResult: &orchestrator.EnsureResult{
			EnvelopeID: "env-1",
			Status:     models.StatusPending,
			SigningURLs: map[models.SubmitterRole]string{
				models.RoleBuyer: "https://sign.test/env-1?email=ana@example.com",
			},
			Created: true,
		},
	}
	ts, _ := newTestServer(t, orch, nil)

	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/packs/agreement/envelope", validOrderPayload(), nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "env-1", body["envelopeId"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, true, body["created"])
}

func TestHandleEnsureEnvelope_IdempotentReturns200(t *testing.T) {
	orch := &fakeOrchestrator{
		ensureResult: &orchestrator.EnsureResult{EnvelopeID: "env-1", Status: models.StatusPending, Created: false},
	}
	ts, _ := newTestServer(t, orch, nil)

	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/packs/agreement/envelope", validOrderPayload(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleEnsureEnvelope_UnknownPack(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{}, nil)

	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/packs/warranty/envelope", validOrderPayload(), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	errInfo := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_FAILED", errInfo["code"])
}

func TestHandleEnsureEnvelope_OrderIDMismatch(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{}, nil)

	payload := validOrderPayload()
	payload["id"] = "ORD-other"
	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/packs/agreement/envelope", payload, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleEnsureEnvelope_ProviderFailureIs502(t *testing.T) {
	orch := &fakeOrchestrator{ensureErr: errors.NewProviderError(500, "upstream down")}
	ts, _ := newTestServer(t, orch, nil)

	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/packs/agreement/envelope", validOrderPayload(), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

// ==========================
// Contract endpoint
// ==========================

func TestHandleGetContract(t *testing.T) {
	contractStore := &fakeContractStore{contracts: map[string]*models.Contract{
		"ORD-1042": {
			OrderID:     "ORD-1042",
			EnvelopeIDs: map[models.PackType]string{models.PackAgreement: "env-1"},
			PackStatus:  map[models.PackType]models.PackStatus{models.PackAgreement: models.StatusPending},
			Version:     2,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		},
	}}
	ts, _ := newTestServer(t, &fakeOrchestrator{}, contractStore)

	resp, err := http.Get(ts.URL + "/api/v1/orders/ORD-1042/contract")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	packs := body["packs"].(map[string]interface{})
	agreement := packs["agreement"].(map[string]interface{})
	assert.Equal(t, "env-1", agreement["envelopeId"])
	assert.Equal(t, "pending", agreement["status"])
	// Packs without an envelope read as not started.
	delivery := packs["delivery_site_readiness"].(map[string]interface{})
	assert.Equal(t, "not_started", delivery["status"])
	assert.Equal(t, float64(2), body["version"])
}

func TestHandleGetContract_NotFound(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/orders/ORD-unknown/contract")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// ==========================
// Completion and assembly endpoints
// ==========================

func TestHandleCompletion(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{completed: true}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/orders/ORD-1042/completion")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["completed"])
}

func TestHandleAssemble_GateBlocksIncompleteContract(t *testing.T) {
	orch := &fakeOrchestrator{
		completed: false,
		manifest:  &models.AssemblyManifest{},
	}
	ts, _ := newTestServer(t, orch, nil)

	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/assembly", nil, nil)
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
}

func TestHandleAssemble_Success(t *testing.T) {
	orch := &fakeOrchestrator{
		completed: true,
		manifest: &models.AssemblyManifest{
			Documents: []models.ManifestEntry{
				{Pack: models.PackAgreement, EnvelopeID: "env-1", FileName: "agreement.pdf", SizeBytes: 10},
			},
			AssembledAt: time.Now().UTC(),
		},
	}
	ts, _ := newTestServer(t, orch, nil)

	resp := postJSON(t, ts.URL+"/api/v1/orders/ORD-1042/assembly", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	docs := body["documents"].([]interface{})
	assert.Len(t, docs, 1)
}

func TestHandleHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOrchestrator{}, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
