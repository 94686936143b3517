package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhldev/extraction-be/internal/worker/domain"
	"github.com/thanhldev/extraction-be/shared/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, logger.NewDefault().Logger)

	return client, srv
}

func TestSubmit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/extract", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://cdn.example.com/doc.pdf", body["url"])

			json.NewEncoder(w).Encode(map[string]string{"job_id": "prov-123"})
		}))

		jobID, err := client.Submit(context.Background(), "https://cdn.example.com/doc.pdf")
		require.NoError(t, err)
		assert.Equal(t, "prov-123", jobID)
	})

	t.Run("provider rejection", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unsupported document type", http.StatusUnprocessableEntity)
		}))

		_, err := client.Submit(context.Background(), "https://cdn.example.com/doc.xyz")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrProviderRejected)
		assert.Contains(t, err.Error(), "unsupported document type")
	})

	t.Run("missing job id", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))

		_, err := client.Submit(context.Background(), "https://cdn.example.com/doc.pdf")
		assert.ErrorIs(t, err, domain.ErrProviderRejected)
	})

	t.Run("network error", func(t *testing.T) {
		client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := client.Submit(context.Background(), "https://cdn.example.com/doc.pdf")
		assert.ErrorIs(t, err, domain.ErrNetwork)
	})
}

func TestPoll(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	tests := []struct {
		name         string
		response     map[string]any
		wantState    string
		wantProgress *int
		wantURL      string
	}{
		{
			name:         "pending uses heuristic progress",
			response:     map[string]any{"state": "pending"},
			wantState:    StatePending,
			wantProgress: intPtr(5),
		},
		{
			name: "running computes progress from pages",
			response: map[string]any{
				"state":           "running",
				"extracted_pages": 3,
				"total_pages":     10,
			},
			wantState:    StateRunning,
			wantProgress: intPtr(30),
		},
		{
			name:         "converting uses heuristic progress",
			response:     map[string]any{"state": "converting"},
			wantState:    StateConverting,
			wantProgress: intPtr(85),
		},
		{
			name: "done carries result archive url",
			response: map[string]any{
				"state":              "done",
				"result_archive_url": "https://provider.example.com/results/abc.zip",
			},
			wantState:    StateDone,
			wantProgress: intPtr(100),
			wantURL:      "https://provider.example.com/results/abc.zip",
		},
		{
			name: "failed carries error message without progress",
			response: map[string]any{
				"state":         "failed",
				"error_message": "corrupted source",
			},
			wantState: StateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/extract/prov-123", r.URL.Path)
				json.NewEncoder(w).Encode(tt.response)
			}))

			status, err := client.Poll(context.Background(), "prov-123")
			require.NoError(t, err)

			assert.Equal(t, tt.wantState, status.State)
			assert.Equal(t, tt.wantURL, status.ResultArchiveURL)
			if tt.wantProgress == nil {
				assert.Nil(t, status.Progress)
			} else {
				require.NotNil(t, status.Progress)
				assert.Equal(t, *tt.wantProgress, *status.Progress)
			}
		})
	}

	t.Run("unknown state is an error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"state": "paused"})
		}))

		_, err := client.Poll(context.Background(), "prov-123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider state")
	})

	t.Run("non-200 poll is a network error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		}))

		_, err := client.Poll(context.Background(), "prov-123")
		assert.ErrorIs(t, err, domain.ErrNetwork)
	})
}
