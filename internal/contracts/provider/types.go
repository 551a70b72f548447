package provider

import (
	"encoding/json"
	"fmt"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/models"
)

// Submission is the live view of one envelope at the provider.
type Submission struct {
	ID        string
	Status    models.PackStatus
	Documents []Document
}

// Document is a downloadable file reference on a completed submission.
type Document struct {
	Name string
	URL  string
}

// submissionRecord mirrors the provider's submission object.
type submissionRecord struct {
	ID         json.Number       `json:"id"`
	Status     string            `json:"status"`
	Submitters []submitterRecord `json:"submitters"`
	Documents  []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"documents"`
}

// submitterRecord mirrors one submitter entry in a create-submission
// response.
type submitterRecord struct {
	ID           json.Number `json:"id"`
	SubmissionID json.Number `json:"submission_id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         string      `json:"role"`
	Status       string      `json:"status"`
}

// normalizeSubmissionResponse handles the provider's two create-submission
// response shapes: a bare array of submitter records, or an object wrapping
// them. Either way the result is one internal Envelope.
func normalizeSubmissionResponse(body []byte) (*models.Envelope, error) {
	// Bare-list variant first: submitters carry the submission id.
	var bare []submitterRecord
	if err := json.Unmarshal(body, &bare); err == nil {
		if len(bare) == 0 {
			return nil, errors.NewProviderDecodeError("createSubmission", fmt.Errorf("empty submitter list"))
		}
		return envelopeFromSubmitters(bare[0].SubmissionID.String(), bare)
	}

	// Wrapped-object variant.
	var wrapped submissionRecord
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, errors.NewProviderDecodeError("createSubmission", err)
	}
	if wrapped.ID.String() == "" {
		return nil, errors.NewProviderDecodeError("createSubmission", fmt.Errorf("no submission id in response"))
	}
	return envelopeFromSubmitters(wrapped.ID.String(), wrapped.Submitters)
}

func envelopeFromSubmitters(submissionID string, records []submitterRecord) (*models.Envelope, error) {
	if submissionID == "" {
		return nil, errors.NewProviderDecodeError("createSubmission", fmt.Errorf("no submission id in response"))
	}

	env := &models.Envelope{
		ID:     submissionID,
		Status: models.StatusPending,
	}
	for _, r := range records {
		env.Submitters = append(env.Submitters, models.Submitter{
			Name:  r.Name,
			Email: r.Email,
			Role:  models.SubmitterRole(r.Role),
		})
	}
	return env, nil
}

// MapStatus folds the provider's status vocabulary into the internal pack
// lifecycle. Unknown values stay Pending rather than inventing a terminal
// state. Webhook payloads carry the same vocabulary, so the mapping is
// shared with the webhook handler.
func MapStatus(providerStatus string) models.PackStatus {
	return mapStatus(providerStatus)
}

func mapStatus(providerStatus string) models.PackStatus {
	switch providerStatus {
	case "completed":
		return models.StatusCompleted
	case "declined":
		return models.StatusDeclined
	case "archived", "expired", "voided":
		return models.StatusVoided
	default:
		return models.StatusPending
	}
}
