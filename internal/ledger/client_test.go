package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeLedger emulates the CCash HTTP surface the client touches.
type fakeLedger struct {
	users map[string]string // username -> password

	registered []string
}

func (f *fakeLedger) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/properties", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"version":2,"max_log":100}`))
	})

	mux.HandleFunc("/api/v1/user/exists", func(w http.ResponseWriter, r *http.Request) {
		_, ok := f.users[r.URL.Query().Get("name")]
		_ = json.NewEncoder(w).Encode(ok)
	})

	mux.HandleFunc("/api/v1/user/register", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.users[creds.Username] = creds.Password
		f.registered = append(f.registered, creds.Username)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/api/v1/user/verify_password", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pass, ok := f.users[creds.Username]
		// CCash wraps scalar responses in a value object.
		_ = json.NewEncoder(w).Encode(map[string]bool{"value": ok && pass == creds.Password})
	})

	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeLedger) {
	t.Helper()
	fake := &fakeLedger{users: map[string]string{"alice": "hunter2"}}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, nil), fake
}

func TestEstablishConnection(t *testing.T) {
	c, _ := newTestClient(t)

	if c.IsConnected() {
		t.Fatal("client must not report connected before probing")
	}
	if err := c.EstablishConnection(context.Background()); err != nil {
		t.Fatalf("establish connection: %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("client must report connected after probing")
	}
	if c.version != 2 {
		t.Fatalf("version = %d, want 2", c.version)
	}
}

func TestEstablishConnectionFailsOnDeadHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	if err := c.EstablishConnection(context.Background()); err == nil {
		t.Fatal("dead host must fail the connection probe")
	}
	if c.IsConnected() {
		t.Fatal("client must stay disconnected after a failed probe")
	}
}

func TestContainsUser(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	exists, err := c.ContainsUser(ctx, "alice")
	if err != nil {
		t.Fatalf("contains alice: %v", err)
	}
	if !exists {
		t.Fatal("alice must exist")
	}

	exists, err = c.ContainsUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("contains nobody: %v", err)
	}
	if exists {
		t.Fatal("nobody must not exist")
	}
}

func TestVerifyPassword(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ok, err := c.VerifyPassword(ctx, Credentials{Username: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("verify correct password: %v", err)
	}
	if !ok {
		t.Fatal("correct password must verify")
	}

	ok, err = c.VerifyPassword(ctx, Credentials{Username: "alice", Password: "wrong"})
	if err != nil {
		t.Fatalf("verify wrong password: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestDoRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "user not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.ContainsUser(context.Background(), "alice")
	if err == nil {
		t.Fatal("non-2xx response must surface as an error")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status in message", err)
	}
}

func TestEnsureMarketUserCreatesMissingAccount(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	if err := c.EstablishConnection(ctx); err != nil {
		t.Fatalf("establish connection: %v", err)
	}

	creds := Credentials{Username: "market", Password: "s3cret"}
	if err := c.EnsureMarketUser(ctx, creds, nil); err != nil {
		t.Fatalf("ensure market user: %v", err)
	}

	if len(fake.registered) != 1 || fake.registered[0] != "market" {
		t.Fatalf("registered = %v, want [market]", fake.registered)
	}

	// A second run finds the account and verifies instead of registering.
	if err := c.EnsureMarketUser(ctx, creds, nil); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(fake.registered) != 1 {
		t.Fatalf("registered = %v, account must not be re-created", fake.registered)
	}
}

func TestEnsureMarketUserRejectsWrongPassword(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.EstablishConnection(ctx); err != nil {
		t.Fatalf("establish connection: %v", err)
	}

	err := c.EnsureMarketUser(ctx, Credentials{Username: "alice", Password: "wrong"}, nil)
	if err == nil {
		t.Fatal("wrong market password must be a hard error")
	}
}

func TestEnsureMarketUserRequiresConnection(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.EnsureMarketUser(context.Background(), Credentials{Username: "market"}, nil)
	if err == nil {
		t.Fatal("ensure without an established session must fail")
	}
}
