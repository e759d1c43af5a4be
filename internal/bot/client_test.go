package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPClientReply_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Message != "hello" {
			t.Fatalf("unexpected message: %q", req.Message)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{Response: "hi there"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	reply, err := client.Reply(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected reply, got %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestHTTPClientReply_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if _, err := client.Reply(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error on 500 status")
	}
}

func TestHTTPClientReply_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if _, err := client.Reply(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error on empty response")
	}
}
