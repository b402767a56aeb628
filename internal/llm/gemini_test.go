package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGeminiRequestMapsRoles(t *testing.T) {
	req := geminiRequestFor([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	})
	require.NotNil(t, req.SystemInstruction)
	require.Equal(t, "sys", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 3)
	require.Equal(t, "user", req.Contents[0].Role)
	require.Equal(t, "model", req.Contents[1].Role)
	require.Equal(t, "q2", req.Contents[2].Parts[0].Text)
}

func TestGeminiProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		require.Equal(t, "g-key", r.URL.Query().Get("key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Cerah kak"}]}}]}`))
	}))
	defer srv.Close()

	res, err := NewGemini(srv.URL, time.Second).Complete(context.Background(),
		[]Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hai"}}, "gemini-test", "g-key")
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Equal(t, "Cerah kak", res.Text)
}

func TestGeminiProviderNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	res, err := NewGemini(srv.URL, time.Second).Complete(context.Background(), nil, "m", "k")
	require.NoError(t, err)
	require.Equal(t, OutcomeEmpty, res.Outcome)
}

func TestGeminiProviderQuotaExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	res, err := NewGemini(srv.URL, time.Second).Complete(context.Background(), nil, "m", "k")
	require.NoError(t, err)
	require.Equal(t, OutcomeRateLimited, res.Outcome)
	require.Equal(t, http.StatusTooManyRequests, res.Status)
}
