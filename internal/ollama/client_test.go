package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Model: req.Model, Response: "FINAL_ANSWER: hi", Done: true})
	}))
	defer srv.Close()

	m := &Model{Client: NewClient(srv.URL), Name: "llama3.2"}
	reply, err := m.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "FINAL_ANSWER: hi", reply)
}

func TestGenerateErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL).Generate(context.Background(), GenerateRequest{Model: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
		assert.Contains(t, err.Error(), "model not found")
	})

	t.Run("context deadline", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := NewClient(srv.URL).Generate(ctx, GenerateRequest{Model: "x"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewClientDefaultHost(t *testing.T) {
	assert.Equal(t, DefaultHost, NewClient("").BaseURL)
}
