package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"home-contracts/internal/common/errors"
	"home-contracts/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-api-key", 2*time.Second), srv
}

func testSubmitters() []models.Submitter {
	return []models.Submitter{
		{Name: "Ana Whitfield", Email: "ana@example.com", Role: models.RoleBuyer},
		{Name: "Haven Homes LLC", Email: "contracts@example.com", Role: models.RoleCounterSigner},
	}
}

func TestCreateSubmission_BareListResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/submissions", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-Auth-Token"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "tpl-agreement", payload["template_id"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 101, "submission_id": 555, "name": "Ana Whitfield", "email": "ana@example.com", "role": "buyer", "status": "awaiting"},
			{"id": 102, "submission_id": 555, "name": "Haven Homes LLC", "email": "contracts@example.com", "role": "counter_signer", "status": "awaiting"}
		]`))
	})

	env, err := client.CreateSubmission(context.Background(), "tpl-agreement", testSubmitters(), map[string]string{"buyer_name": "Ana Whitfield"}, map[string]string{"order_id": "ORD-1042", "pack": "agreement"})
	require.NoError(t, err)

	assert.Equal(t, "555", env.ID)
	assert.Equal(t, models.StatusPending, env.Status)
	require.Len(t, env.Submitters, 2)
	assert.Equal(t, models.RoleBuyer, env.Submitters[0].Role)
	assert.Equal(t, "contracts@example.com", env.Submitters[1].Email)
}

func TestCreateSubmission_WrappedObjectResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 777,
			"status": "pending",
			"submitters": [
				{"id": 201, "name": "Ana Whitfield", "email": "ana@example.com", "role": "buyer"}
			]
		}`))
	})

	env, err := client.CreateSubmission(context.Background(), "tpl-agreement", testSubmitters(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "777", env.ID)
	require.Len(t, env.Submitters, 1)
	assert.Equal(t, "ana@example.com", env.Submitters[0].Email)
}

func TestCreateSubmission_EmptyBareList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.CreateSubmission(context.Background(), "tpl-agreement", testSubmitters(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeProviderDecode))
}

func TestCreateSubmission_Non2xx(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "template not found"}`))
	})

	_, err := client.CreateSubmission(context.Background(), "tpl-missing", testSubmitters(), nil, nil)
	require.Error(t, err)

	stdErr := errors.AsStandard(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, errors.ErrCodeProvider, stdErr.Code)
	assert.False(t, stdErr.Retryable, "definitive 4xx must not be retryable")
}

func TestCreateSubmission_5xxIsRetryable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CreateSubmission(context.Background(), "tpl-agreement", testSubmitters(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestGetStatus_Mapping(t *testing.T) {
	tests := []struct {
		providerStatus string
		want           models.PackStatus
	}{
		{"completed", models.StatusCompleted},
		{"declined", models.StatusDeclined},
		{"archived", models.StatusVoided},
		{"expired", models.StatusVoided},
		{"pending", models.StatusPending},
		{"opened", models.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.providerStatus, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/submissions/env-9", r.URL.Path)
				w.Write([]byte(`{"id": 9, "status": "` + tt.providerStatus + `"}`))
			})

			status, err := client.GetStatus(context.Background(), "env-9")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestGetSubmission_Documents(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": 42,
			"status": "completed",
			"documents": [
				{"name": "agreement.pdf", "url": "https://files.example.com/agreement.pdf"}
			]
		}`))
	})

	sub, err := client.GetSubmission(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, sub.Status)
	require.Len(t, sub.Documents, 1)
	assert.Equal(t, "agreement.pdf", sub.Documents[0].Name)
}

func TestDownload(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/agreement.pdf", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-Auth-Token"))
		w.Write([]byte("%PDF-1.7 fake"))
	})

	data, err := client.Download(context.Background(), srv.URL+"/files/agreement.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 fake"), data)
}

func TestDownload_NotFound(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Download(context.Background(), srv.URL+"/files/gone.pdf")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeProvider))
}

func TestCreateTemplate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/templates/html", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "purchase-agreement", payload["name"])

		w.Write([]byte(`{"id": 31337}`))
	})

	id, err := client.CreateTemplate(context.Background(), "purchase-agreement", "<html></html>", []string{"buyer", "counter_signer"})
	require.NoError(t, err)
	assert.Equal(t, "31337", id)
}

func TestSigningURL(t *testing.T) {
	client := NewClient("https://sign.example.com", "key", time.Second)

	url := client.SigningURL("env-55", "ana+test@example.com")
	assert.Equal(t, "https://sign.example.com/sign/env-55?email=ana%2Btest%40example.com", url)
}

func TestTransportErrorIsRetryable(t *testing.T) {
	// Point at a closed server to force a connection error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, "key", 500*time.Millisecond)
	_, err := client.GetStatus(context.Background(), "env-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTransport))
	assert.True(t, errors.IsRetryable(err))
}
