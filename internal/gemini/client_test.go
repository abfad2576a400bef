package gemini

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

func newTestClient(url string) *Client {
	c := NewClient("test-key")
	c.BaseURL = url
	return c
}

func TestModelComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "open it", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"FUNCTION_CALL: "},{"text":"open_powerpoint"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	m := &Model{Client: newTestClient(srv.URL), Name: DefaultModel}
	reply, err := m.Complete(context.Background(), "open it")
	require.NoError(t, err)
	assert.Equal(t, "FUNCTION_CALL: open_powerpoint", reply)
}

func TestModelCompleteErrors(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}))
		defer srv.Close()

		_, err := (&Model{Client: newTestClient(srv.URL), Name: DefaultModel}).Complete(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := (&Model{Client: newTestClient(srv.URL), Name: DefaultModel}).Complete(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
		assert.Contains(t, err.Error(), "API key not valid")
	})

	t.Run("deadline does not leak key", func(t *testing.T) {
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
		_, err := (&Model{Client: newTestClient(srv.URL), Name: DefaultModel}).Complete(ctx, "x")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotContains(t, err.Error(), "test-key")
	})
}
