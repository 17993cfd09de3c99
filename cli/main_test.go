package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateAndSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.Header.Get(userIDHeader))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chat/sessions":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"message":"ok","sessionId":"s1"}`))
		case "/api/chat/sessions/s1/messages":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "hello", body["message"])
			_, _ = w.Write([]byte(`{"response":"hi","analysis":{"emotionalState":"neutral"},"metadata":{},"degraded":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"session not found"}`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "u1")
	require.NoError(t, client.CreateSession())
	assert.Equal(t, "s1", client.sessionID)
	require.NoError(t, client.SendMessage("hello"))

	client.sessionID = "other"
	err := client.PrintHistory()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
}
