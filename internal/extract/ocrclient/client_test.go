package ocrclient_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/podcast-pipeline/internal/core"
	"github.com/book-expert/podcast-pipeline/internal/extract/ocrclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_ReturnsPagesWithOffsets(t *testing.T) {
	t.Parallel()

	documentBytes := []byte("%PDF-1.4 fake document")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/ocr/process", r.URL.Path)

		var req ocrclient.Request

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ocr-large", req.Model)
		assert.Equal(t, "pdf", req.Kind)
		assert.Equal(t, base64.StdEncoding.EncodeToString(documentBytes), req.Document)

		_ = json.NewEncoder(w).Encode(ocrclient.Response{
			Pages: []string{"Page one.", "Page two."},
		})
	}))
	defer server.Close()

	client := ocrclient.New(server.URL, "ocr-large", 5*time.Second)

	extracted, err := client.Extract(
		context.Background(),
		core.Document{Bytes: documentBytes, Kind: core.KindPDF},
	)
	require.NoError(t, err)

	assert.Equal(t, "Page one.\n\nPage two.", extracted.Text)
	assert.Equal(t, []int{0, 11}, extracted.PageOffsets)
}

func TestExtract_EmptyDocumentIsPermanent(t *testing.T) {
	t.Parallel()

	client := ocrclient.New("http://localhost:1", "ocr-large", time.Second)

	_, err := client.Extract(context.Background(), core.Document{Bytes: nil, Kind: core.KindPDF})
	require.ErrorIs(t, err, ocrclient.ErrEmptyDocument)
	assert.False(t, core.IsTransient(err))
}

func TestExtract_UnreachableServiceIsTransient(t *testing.T) {
	t.Parallel()

	client := ocrclient.New("http://localhost:1", "ocr-large", time.Second)

	_, err := client.Extract(
		context.Background(),
		core.Document{Bytes: []byte("data"), Kind: core.KindImage},
	)
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestExtract_StatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"unreadable input", http.StatusUnprocessableEntity, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(testCase.status)
					_ = json.NewEncoder(w).Encode(map[string]string{"detail": "nope"})
				},
			))
			defer server.Close()

			client := ocrclient.New(server.URL, "ocr-large", 5*time.Second)

			_, err := client.Extract(
				context.Background(),
				core.Document{Bytes: []byte("data"), Kind: core.KindPDF},
			)
			require.Error(t, err)
			assert.Equal(t, testCase.wantTransient, core.IsTransient(err))
		})
	}
}

func TestExtract_NoPagesIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ocrclient.Response{Pages: nil})
	}))
	defer server.Close()

	client := ocrclient.New(server.URL, "ocr-large", 5*time.Second)

	_, err := client.Extract(
		context.Background(),
		core.Document{Bytes: []byte("data"), Kind: core.KindPDF},
	)
	require.ErrorIs(t, err, ocrclient.ErrEmptyResponse)
	assert.False(t, core.IsTransient(err))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)

			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := ocrclient.New(server.URL, "ocr-large", 5*time.Second)
	require.NoError(t, client.HealthCheck(context.Background()))
}
