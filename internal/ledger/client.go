// Package ledger implements the HTTP client for the external CCash ledger.
// The ledger is the system of record for currency and credentials; the
// market server only validates users against it and never moves funds
// itself.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ccash-market/marketd/pkg/logger"
)

// Credentials identifies a ledger account.
type Credentials struct {
	Username string `json:"name"`
	Password string `json:"pass"`
}

// Client talks to one CCash ledger instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger

	connected bool
	version   int64
}

// Config configures a ledger client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a ledger client. The connection is established lazily
// via EstablishConnection.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// IsConnected reports whether EstablishConnection succeeded.
func (c *Client) IsConnected() bool {
	return c.connected
}

// EstablishConnection probes the ledger's properties endpoint and records
// the protocol version.
func (c *Client) EstablishConnection(ctx context.Context) error {
	body, err := c.get(ctx, "/api/properties")
	if err != nil {
		return fmt.Errorf("establish ledger connection: %w", err)
	}

	c.version = gjson.GetBytes(body, "version").Int()
	c.connected = true
	c.log.WithField("version", c.version).Infof("connected to ledger at %s", c.baseURL)
	return nil
}

// ContainsUser reports whether the ledger knows the given username.
func (c *Client) ContainsUser(ctx context.Context, username string) (bool, error) {
	body, err := c.get(ctx, "/api/v1/user/exists?name="+username)
	if err != nil {
		return false, fmt.Errorf("contains user: %w", err)
	}

	result := gjson.ParseBytes(body)
	if result.IsBool() {
		return result.Bool(), nil
	}
	return result.Get("value").Bool(), nil
}

// AddUser registers a new account on the ledger.
func (c *Client) AddUser(ctx context.Context, creds Credentials) error {
	if _, err := c.post(ctx, "/api/v1/user/register", creds); err != nil {
		return fmt.Errorf("add user: %w", err)
	}
	return nil
}

// VerifyPassword checks the given credentials against the ledger.
func (c *Client) VerifyPassword(ctx context.Context, creds Credentials) (bool, error) {
	body, err := c.post(ctx, "/api/v1/user/verify_password", creds)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}

	result := gjson.ParseBytes(body)
	if result.IsBool() {
		return result.Bool(), nil
	}
	return result.Get("value").Bool(), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ledger returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}
