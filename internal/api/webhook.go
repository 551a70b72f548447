// internal/api/webhook.go
package api

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/common/metrics"
	"home-contracts/internal/contracts/provider"
	"home-contracts/internal/models"
)

const webhookSchema = `{
	"type": "object",
	"required": ["event_type", "data"],
	"properties": {
		"event_type": {"type": "string"},
		"timestamp": {"type": "string"},
		"data": {
			"type": "object",
			"required": ["id", "status"],
			"properties": {
				"id": {"type": ["integer", "string"]},
				"status": {"type": "string"},
				"metadata": {
					"type": "object",
					"properties": {
						"order_id": {"type": "string"},
						"pack": {"type": "string"}
					}
				}
			}
		}
	}
}`

var webhookSchemaLoader = gojsonschema.NewStringLoader(webhookSchema)

// envelopeRef tolerates the provider sending envelope ids as either JSON
// numbers or strings; the schema admits both.
type envelopeRef string

func (e *envelopeRef) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = envelopeRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*e = envelopeRef(n.String())
	return nil
}

type webhookEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		ID       envelopeRef `json:"id"`
		Status   string      `json:"status"`
		Metadata struct {
			OrderID string `json:"order_id"`
			Pack    string `json:"pack"`
		} `json:"metadata"`
	} `json:"data"`
}

// handleWebhook ingests provider status callbacks. It refreshes the cached
// pack status and invalidates the read cache; it never drives the state
// machine itself. Workflow reads still reconcile against live status, so a
// lost or duplicated webhook costs freshness, not correctness.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		provided := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) != 1 {
			metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.writeError(w, errors.NewValidationError("read webhook body: "+err.Error()))
		return
	}

	result, err := gojsonschema.Validate(webhookSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		s.writeError(w, errors.NewValidationError("webhook schema validation: "+err.Error()))
		return
	}
	if !result.Valid() {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		s.writeError(w, errors.NewValidationError("webhook payload does not conform to schema: "+strings.Join(details, "; ")))
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.writeError(w, errors.NewValidationError("decode webhook payload: "+err.Error()))
		return
	}

	orderID := event.Data.Metadata.OrderID
	pack := models.PackType(event.Data.Metadata.Pack)
	envelopeID := string(event.Data.ID)

	if orderID == "" || !pack.IsValid() {
		// Not one of ours (or created before metadata tagging). Accept so
		// the provider stops redelivering.
		s.logger.Warn("webhook without usable metadata ignored", map[string]interface{}{
			"eventType":  event.EventType,
			"envelopeId": envelopeID,
		})
		metrics.WebhooksReceived.WithLabelValues("ignored").Inc()
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	status := provider.MapStatus(event.Data.Status)

	contract, err := s.store.Get(r.Context(), orderID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			metrics.WebhooksReceived.WithLabelValues("ignored").Inc()
			s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		s.writeError(w, err)
		return
	}

	currentID, priorStatus := contract.EnvelopeFor(pack)
	if currentID != envelopeID {
		// Stale webhook for a superseded envelope.
		s.logger.Info("webhook for superseded envelope ignored", map[string]interface{}{
			"orderId":           orderID,
			"pack":              string(pack),
			"webhookEnvelopeId": envelopeID,
			"currentEnvelopeId": currentID,
		})
		metrics.WebhooksReceived.WithLabelValues("ignored").Inc()
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if status != priorStatus {
		if err := s.store.UpdatePackStatus(r.Context(), orderID, pack, status); err != nil {
			s.writeError(w, err)
			return
		}
		if s.audit != nil {
			s.audit.StatusChanged(r.Context(), orderID, pack, envelopeID, priorStatus, status)
		}
	}
	if s.cache != nil {
		s.cache.Invalidate(r.Context(), orderID, pack)
	}

	s.logger.Info("webhook processed", map[string]interface{}{
		"orderId":    orderID,
		"pack":       string(pack),
		"envelopeId": envelopeID,
		"status":     string(status),
	})
	metrics.WebhooksReceived.WithLabelValues("processed").Inc()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
