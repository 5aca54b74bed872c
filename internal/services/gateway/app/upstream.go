package app

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/messages"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRejected is returned when the server answers with success=false.
	ErrRejected = errors.New("request rejected by server")
)

type ClientConfig struct {
	URL                string
	User               string
	PasswordMD5        string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Breaker            BreakerConfig
	// LoginMaxElapsed bounds the login retries; zero retries for a minute.
	LoginMaxElapsed time.Duration
	Logger          *log.Logger
}

// Client talks to the supervisory server. Every request runs inside a
// circuit breaker and carries the session token; a 401 triggers one new
// login and one retry.
type Client struct {
	base    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	cfg     ClientConfig
	log     *log.Logger

	mu      sync.Mutex
	session Session
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LoginMaxElapsed <= 0 {
		cfg.LoginMaxElapsed = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed servers on site
	}
	return &Client{
		base:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		http:    &http.Client{Timeout: cfg.Timeout, Transport: tr},
		breaker: NewBreaker("server-api", cfg.Breaker, cfg.Logger),
		cfg:     cfg,
		log:     cfg.Logger,
	}
}

// Login opens a session, retrying with exponential backoff while the
// server is unreachable. Refused credentials are not retried.
func (c *Client) Login(ctx context.Context) (Session, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.cfg.LoginMaxElapsed

	var s Session
	err := backoff.Retry(func() error {
		body := loginRequest{Login: c.cfg.User, Password: c.cfg.PasswordMD5}
		err := c.execute(ctx, http.MethodPost, "/auth/rest/login", body, &s)
		if errors.Is(err, ErrRejected) || errors.Is(err, ErrUnauthorized) {
			return backoff.Permanent(err)
		}
		if err != nil {
			c.log.Printf("client: login to %s failed: %v", c.base, err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return Session{}, fmt.Errorf("login as %q: %w", c.cfg.User, err)
	}
	if s.Token == "" {
		return Session{}, fmt.Errorf("login as %q: %w: empty token", c.cfg.User, ErrRejected)
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.log.Printf("client: logged in as %q (user id %d)", c.cfg.User, s.UserID)
	return s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if c.token() == "" {
		return nil
	}
	err := c.execute(ctx, http.MethodGet, "/auth/secure/logout", nil, nil)
	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()
	return err
}

// Devices lists the device objects known to the server.
func (c *Client) Devices(ctx context.Context) ([]RawObject, error) {
	var out []RawObject
	if err := c.request(ctx, http.MethodGet, "/vbas/gate/getDevices", nil, &out); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

// DeviceObjects lists the objects of one type under a device.
func (c *Client) DeviceObjects(ctx context.Context, deviceID int, t bacnet.ObjectType) ([]RawObject, error) {
	var out []RawObject
	path := fmt.Sprintf("/vbas/gate/get/%d/%d", deviceID, int(t))
	if err := c.request(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list %s objects of device %d: %w", t, deviceID, err)
	}
	return out, nil
}

// PutUpdates sends one batch of object updates of a device.
func (c *Client) PutUpdates(ctx context.Context, deviceID int, updates []messages.Update) error {
	path := fmt.Sprintf("/vbas/gate/put/%d", deviceID)
	if err := c.request(ctx, http.MethodPost, path, updates, nil); err != nil {
		return fmt.Errorf("put %d updates of device %d: %w", len(updates), deviceID, err)
	}
	return nil
}

// BreakerState reports the state of the API circuit breaker.
func (c *Client) BreakerState() gobreaker.State { return c.breaker.State() }

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Token
}

// request is execute with one new login on 401.
func (c *Client) request(ctx context.Context, method, path string, in, out any) error {
	err := c.execute(ctx, method, path, in, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.log.Printf("client: %s %s unauthorized, logging in again", method, path)
	if _, lerr := c.Login(ctx); lerr != nil {
		return errors.Join(err, lerr)
	}
	return c.execute(ctx, method, path, in, out)
}

func (c *Client) execute(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, method, path, in, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: %w: %s", method, path, ErrRejected, env.errorText())
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}
