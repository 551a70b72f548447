// internal/contracts/audit/audit.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"home-contracts/internal/common/logger"
	"home-contracts/internal/models"
)

// Event types kept in the audit index. Superseded envelope ids live here as
// events rather than on the contract record, so the full envelope history
// of an order is a single filtered query.
const (
	EventEnvelopeCreated    = "envelope_created"
	EventEnvelopeSuperseded = "envelope_superseded"
	EventStatusChanged      = "status_changed"
	EventAssemblyRecorded   = "assembly_recorded"
)

type Event struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	OrderID     string                 `json:"orderId"`
	Pack        string                 `json:"pack,omitempty"`
	EnvelopeID  string                 `json:"envelopeId,omitempty"`
	PriorStatus string                 `json:"priorStatus,omitempty"`
	Status      string                 `json:"status,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	RecordedAt  time.Time              `json:"recordedAt"`
}

// indexer is the slice of the Elasticsearch API the trail needs.
type indexer interface {
	Index(ctx context.Context, index, documentID string, body io.Reader) error
}

// Trail writes contract lifecycle events to Elasticsearch. Writes are
// best-effort: failures are logged and never surface to the workflow.
type Trail struct {
	es     indexer
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Trail {
	return NewWithIndexer(&esIndexer{client: client}, index, log)
}

func NewWithIndexer(es indexer, index string, log logger.Logger) *Trail {
	return &Trail{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit-trail"}),
	}
}

func (t *Trail) EnvelopeCreated(ctx context.Context, orderID string, pack models.PackType, envelopeID string) {
	t.record(ctx, Event{
		Type:       EventEnvelopeCreated,
		OrderID:    orderID,
		Pack:       string(pack),
		EnvelopeID: envelopeID,
		Status:     string(models.StatusPending),
	})
}

// EnvelopeSuperseded marks the terminal envelope replaced by a restart. The
// superseded id is preserved in the event, not on the contract row.
func (t *Trail) EnvelopeSuperseded(ctx context.Context, orderID string, pack models.PackType, priorEnvelopeID string, priorStatus models.PackStatus, newEnvelopeID string) {
	t.record(ctx, Event{
		Type:        EventEnvelopeSuperseded,
		OrderID:     orderID,
		Pack:        string(pack),
		EnvelopeID:  priorEnvelopeID,
		PriorStatus: string(priorStatus),
		Details:     map[string]interface{}{"replacedBy": newEnvelopeID},
	})
}

func (t *Trail) StatusChanged(ctx context.Context, orderID string, pack models.PackType, envelopeID string, prior, current models.PackStatus) {
	t.record(ctx, Event{
		Type:        EventStatusChanged,
		OrderID:     orderID,
		Pack:        string(pack),
		EnvelopeID:  envelopeID,
		PriorStatus: string(prior),
		Status:      string(current),
	})
}

func (t *Trail) AssemblyRecorded(ctx context.Context, orderID string, manifest *models.AssemblyManifest) {
	details := map[string]interface{}{
		"documentCount": len(manifest.Documents),
		"partial":       manifest.Partial(),
	}
	if len(manifest.Gaps) > 0 {
		gaps := make([]string, 0, len(manifest.Gaps))
		for _, gap := range manifest.Gaps {
			gaps = append(gaps, string(gap.Pack))
		}
		details["gaps"] = gaps
	}
	t.record(ctx, Event{
		Type:    EventAssemblyRecorded,
		OrderID: orderID,
		Details: details,
	})
}

func (t *Trail) record(ctx context.Context, event Event) {
	event.ID = uuid.New().String()
	event.RecordedAt = time.Now().UTC()

	body, err := json.Marshal(event)
	if err != nil {
		t.logger.Error("failed to encode audit event", map[string]interface{}{
			"eventType": event.Type,
			"orderId":   event.OrderID,
			"error":     err.Error(),
		})
		return
	}

	if err := t.es.Index(ctx, t.index, event.ID, bytes.NewReader(body)); err != nil {
		t.logger.Warn("failed to index audit event", map[string]interface{}{
			"eventType": event.Type,
			"orderId":   event.OrderID,
			"error":     err.Error(),
		})
	}
}

type esIndexer struct {
	client *elasticsearch.Client
}

func (e *esIndexer) Index(ctx context.Context, index, documentID string, body io.Reader) error {
	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: documentID,
		Body:       body,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", index, res.Status())
	}
	return nil
}
