package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.Handler, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "admin", "secret", timeout, zerolog.Nop())
	t.Cleanup(c.Shutdown)
	return c, srv
}

func TestAskSuccess(t *testing.T) {
	var gotAuth bool
	var gotBody string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		gotAuth = ok && user == "admin" && pass == "secret"
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(`{"answer": "Paris"}`))
	}), time.Second)

	res := c.Ask(context.Background(), "capital of France?", "sess-1")
	if !res.OK() {
		t.Fatalf("expected answer, got failure: %v", res.Failure)
	}
	if res.Answer != "Paris" {
		t.Errorf("expected answer %q, got %q", "Paris", res.Answer)
	}
	if !gotAuth {
		t.Error("request did not carry basic auth credentials")
	}
	if want := `{"query":"capital of France?","session_id":"sess-1"}`; gotBody != want {
		t.Errorf("expected body %s, got %s", want, gotBody)
	}
}

func TestAskResponseFieldFallback(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "fallback answer"}`))
	}), time.Second)

	res := c.Ask(context.Background(), "q", "")
	if !res.OK() {
		t.Fatalf("expected answer, got failure: %v", res.Failure)
	}
	if res.Answer != "fallback answer" {
		t.Errorf("expected fallback answer, got %q", res.Answer)
	}
}

func TestAskNon2xxIsTransportFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}), time.Second)

	res := c.Ask(context.Background(), "q", "")
	if res.OK() {
		t.Fatal("expected failure, got answer")
	}
	if res.Failure.Kind != FailureTransport {
		t.Errorf("expected transport failure, got %s", res.Failure.Kind)
	}
}

func TestAskMalformedBodyIsParseFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}), time.Second)

	res := c.Ask(context.Background(), "q", "")
	if res.OK() {
		t.Fatal("expected failure, got answer")
	}
	if res.Failure.Kind != FailureParse {
		t.Errorf("expected parse failure, got %s", res.Failure.Kind)
	}
}

func TestAskMissingAnswerIsParseFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	}), time.Second)

	res := c.Ask(context.Background(), "q", "")
	if res.OK() {
		t.Fatal("expected failure, got answer")
	}
	if res.Failure.Kind != FailureParse {
		t.Errorf("expected parse failure, got %s", res.Failure.Kind)
	}
}

func TestAskTimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}), 50*time.Millisecond)

	start := time.Now()
	res := c.Ask(context.Background(), "q", "")
	elapsed := time.Since(start)

	if res.OK() {
		t.Fatal("expected failure, got answer")
	}
	if res.Failure.Kind != FailureTransport {
		t.Errorf("expected transport failure, got %s", res.Failure.Kind)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout not honored, call took %s", elapsed)
	}
}

func TestAskSingleAttempt(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}), time.Second)

	c.Ask(context.Background(), "q", "")
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", n)
	}
}

func TestSessionCreatedOnce(t *testing.T) {
	c := NewClient("http://localhost:0", "u", "p", time.Second, zerolog.Nop())
	defer c.Shutdown()

	const workers = 16
	sessions := make([]*http.Client, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions[i] = c.httpSession()
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("concurrent callers received different HTTP sessions")
		}
	}
}

func TestShutdownIdempotentWithoutSession(t *testing.T) {
	c := NewClient("http://localhost:0", "u", "p", time.Second, zerolog.Nop())
	// Never created a session; both calls must be safe.
	c.Shutdown()
	c.Shutdown()
}

func TestCreateSession(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create-session" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"session_id": "abc-123"}`))
	}), time.Second)

	id, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("expected session id abc-123, got %q", id)
	}
}

func TestCreateSessionMissingID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}), time.Second)

	if _, err := c.CreateSession(context.Background()); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestDeleteSession(t *testing.T) {
	var gotBody string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/delete-session" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}), time.Second)

	if err := c.DeleteSession(context.Background(), "abc-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `{"session_id":"abc-123"}`; gotBody != want {
		t.Errorf("expected body %s, got %s", want, gotBody)
	}
}

func TestDeleteSessionErrorStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}), time.Second)

	if err := c.DeleteSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}
