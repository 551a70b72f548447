// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/common/logger"
	"home-contracts/internal/contracts/orchestrator"
	"home-contracts/internal/contracts/statuscache"
	"home-contracts/internal/contracts/store"
	"home-contracts/internal/models"
)

// PackOrchestrator is the orchestrator surface the HTTP layer drives.
type PackOrchestrator interface {
	EnsurePackEnvelope(ctx context.Context, pack models.PackType, order *models.Order) (*orchestrator.EnsureResult, error)
	AllPacksCompleted(ctx context.Context, orderID string) (bool, error)
	Assemble(ctx context.Context, orderID string) (*models.AssemblyManifest, error)
}

type Server struct {
	orch          PackOrchestrator
	store         store.Store
	cache         *statuscache.Cache
	audit         orchestrator.AuditTrail
	webhookSecret string
	logger        logger.Logger
}

func NewServer(orch PackOrchestrator, contractStore store.Store, cache *statuscache.Cache, trail orchestrator.AuditTrail, webhookSecret string, log logger.Logger) *Server {
	return &Server{
		orch:          orch,
		store:         contractStore,
		cache:         cache,
		audit:         trail,
		webhookSecret: webhookSecret,
		logger:        log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders/{orderID}/packs/{pack}/envelope", s.handleEnsureEnvelope)
	mux.HandleFunc("GET /api/v1/orders/{orderID}/contract", s.handleGetContract)
	mux.HandleFunc("GET /api/v1/orders/{orderID}/completion", s.handleCompletion)
	mux.HandleFunc("POST /api/v1/orders/{orderID}/assembly", s.handleAssemble)
	mux.HandleFunc("POST /api/v1/webhooks/esignature", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// handleEnsureEnvelope creates or returns the active envelope for a pack.
// The order payload comes from the order service; this endpoint never
// stores it.
func (s *Server) handleEnsureEnvelope(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")
	pack := models.PackType(r.PathValue("pack"))

	var order models.Order
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		s.writeError(w, errors.NewValidationError("malformed order payload: "+err.Error()))
		return
	}
	if order.ID == "" {
		order.ID = orderID
	}
	if order.ID != orderID {
		s.writeError(w, errors.NewValidationError("order id in path and payload disagree"))
		return
	}

	result, err := s.orch.EnsurePackEnvelope(r.Context(), pack, &order)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, map[string]interface{}{
		"orderId":     orderID,
		"pack":        string(pack),
		"envelopeId":  result.EnvelopeID,
		"status":      string(result.Status),
		"signingUrls": result.SigningURLs,
		"created":     result.Created,
	})
}

// handleGetContract returns the contract record for display. Pack statuses
// are overlaid with fresher cache observations when available; this is the
// one read path allowed to serve cached status.
func (s *Server) handleGetContract(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	contract, err := s.store.Get(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	packs := map[string]map[string]string{}
	for _, pack := range models.AllPacks() {
		envelopeID, status := contract.EnvelopeFor(pack)
		if envelopeID == "" {
			packs[string(pack)] = map[string]string{"status": string(models.StatusNotStarted)}
			continue
		}
		if s.cache != nil {
			if cached, ok := s.cache.Get(r.Context(), orderID, pack); ok {
				status = cached
			}
		}
		packs[string(pack)] = map[string]string{
			"envelopeId": envelopeID,
			"status":     string(status),
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"orderId":          contract.OrderID,
		"packs":            packs,
		"version":          contract.Version,
		"assemblyManifest": contract.AssemblyManifest,
		"createdAt":        contract.CreatedAt,
		"updatedAt":        contract.UpdatedAt,
	})
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	completed, err := s.orch.AllPacksCompleted(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"orderId":   orderID,
		"completed": completed,
	})
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	completed, err := s.orch.AllPacksCompleted(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !completed {
		s.writeError(w, errors.NewAssemblyPreconditionError(orderID, []string{"completion gate not satisfied"}))
		return
	}

	manifest, err := s.orch.Assemble(r.Context(), orderID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, manifest)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := err.Error()
	if stdErr := errors.AsStandard(err); stdErr != nil {
		code = string(stdErr.Code)
		message = stdErr.Message
	}
	if status >= 500 {
		s.logger.Error("request failed", map[string]interface{}{
			"code":  code,
			"error": err.Error(),
		})
	}
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
