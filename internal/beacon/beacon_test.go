package beacon

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSendPostsBody(t *testing.T) {
	var (
		mu        sync.Mutex
		gotBody   string
		gotType   string
		gotMethod string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody, gotType, gotMethod = string(b), r.Header.Get("Content-Type"), r.Method
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := New(srv.Client(), zap.NewNop())
	body := []byte(`{"event":"time_on_page","ms":1501}`)
	if !b.Send(srv.URL+"/beacon", "application/json", body) {
		t.Fatal("beacon not queued")
	}
	body[0] = 'X'

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotMethod != http.MethodPost || gotType != "application/json" {
		t.Fatalf("method=%s type=%s", gotMethod, gotType)
	}
	if gotBody != `{"event":"time_on_page","ms":1501}` {
		t.Fatalf("body = %s", gotBody)
	}
}

func TestSendRefusesOversizedBody(t *testing.T) {
	b := New(nil, zap.NewNop())
	if b.Send("http://127.0.0.1:1/beacon", "application/json", []byte(strings.Repeat("x", MaxBodyBytes+1))) {
		t.Fatal("oversized beacon queued")
	}
}

func TestSendIsSilentOnFailure(t *testing.T) {
	b := New(&http.Client{Timeout: 100 * time.Millisecond}, zap.NewNop())
	if !b.Send("http://127.0.0.1:1/beacon", "application/json", []byte(`{}`)) {
		t.Fatal("beacon not queued")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
