// Package backend is the HTTP client for the coordination service: job
// claiming, session state updates, log shipping, storage-state persistence
// and runner heartbeats. All request pacing lives here so callers never need
// to coordinate among themselves.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/marionette/api/schemas"
	"github.com/xkilldash9x/marionette/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoWork is returned by ClaimJob when the queue is empty (HTTP 204).
// It is a normal condition, not a failure.
var ErrNoWork = fmt.Errorf("backend: no work available")

// Client talks to the coordination service. It enforces a minimum interval
// between requests and honors 429 Retry-After cooldowns; both apply across
// all concurrent sessions sharing the client.
type Client struct {
	baseURL  string
	runnerID string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger

	// cooldownMu guards the throttle state, set from 429 responses. The
	// default cooldown doubles per consecutive 429 so a backend throttling
	// without a Retry-After hint still sees the request rate fall off.
	cooldownMu     sync.Mutex
	cooldownUntil  time.Time
	throttleStreak int
	cooldownBase   time.Duration
	cooldownMax    time.Duration
}

// New builds a Client from config.
func New(cfg config.BackendConfig, runnerID string, logger *zap.Logger) *Client {
	interval := cfg.MinRequestInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		runnerID:     runnerID,
		http:         &http.Client{Timeout: cfg.RequestTimeout},
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		logger:       logger,
		cooldownBase: 5 * time.Second,
		cooldownMax:  60 * time.Second,
	}
}

// ClaimJob asks for the next queued job. ErrNoWork means an empty queue.
func (c *Client) ClaimJob(ctx context.Context) (*schemas.Job, error) {
	var job schemas.Job
	status, err := c.do(ctx, http.MethodGet, "/api/v1/jobs?runner_id="+c.runnerID, nil, &job)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, ErrNoWork
	}
	job.Session.ClaimedBy = c.runnerID
	return &job, nil
}

// UpdateSession patches the session record.
func (c *Client) UpdateSession(ctx context.Context, sessionID string, update schemas.SessionUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/sessions/"+sessionID, update, nil)
	return err
}

// ReportCaptcha records a challenge lifecycle transition.
func (c *Client) ReportCaptcha(ctx context.Context, sessionID string, update schemas.CaptchaUpdate) error {
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/sessions/"+sessionID+"/captcha", update, nil)
	return err
}

// ReportURL records the page the session is currently on.
func (c *Client) ReportURL(ctx context.Context, sessionID, url string) error {
	payload := map[string]string{"url": url}
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/sessions/"+sessionID+"/url", payload, nil)
	return err
}

// PushLogs ships a batch of log entries for one session.
func (c *Client) PushLogs(ctx context.Context, sessionID string, entries []schemas.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/logs", entries, nil)
	return err
}

// SaveStorageState persists the profile's cookies and local storage.
func (c *Client) SaveStorageState(ctx context.Context, profileID string, state []byte) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/profiles/"+profileID+"/storage", jsoniter.RawMessage(state), nil)
	return err
}

// SendHeartbeat reports runner liveness and counters.
func (c *Client) SendHeartbeat(ctx context.Context, hb schemas.Heartbeat) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/runners/health", hb, nil)
	return err
}

// do runs one paced request. It serializes the body, waits out the limiter
// and any active cooldown, and decodes a 2xx response into out when out is
// non-nil and the status carries a body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	if err := c.waitCooldown(ctx); err != nil {
		return 0, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Runner-ID", c.runnerID)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.startCooldown(resp.Header.Get("Retry-After"))
		return resp.StatusCode, fmt.Errorf("%s %s: backend throttled (429)", method, path)
	}
	c.resetThrottle()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// waitCooldown blocks until any 429 cooldown has elapsed.
func (c *Client) waitCooldown(ctx context.Context) error {
	c.cooldownMu.Lock()
	wait := time.Until(c.cooldownUntil)
	c.cooldownMu.Unlock()

	if wait <= 0 {
		return nil
	}
	c.logger.Debug("waiting out backend cooldown", zap.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// startCooldown records the earliest next request time. Retry-After
// (seconds) wins when present; otherwise the cooldown starts at the base
// and doubles per consecutive 429, capped.
func (c *Client) startCooldown(retryAfter string) {
	c.cooldownMu.Lock()
	c.throttleStreak++

	var wait time.Duration
	if retryAfter != "" {
		if n, err := strconv.Atoi(retryAfter); err == nil && n > 0 {
			wait = time.Duration(n) * time.Second
		}
	}
	if wait == 0 {
		wait = c.cooldownBase << (c.throttleStreak - 1)
		if wait > c.cooldownMax || wait <= 0 {
			wait = c.cooldownMax
		}
	}

	until := time.Now().Add(wait)
	if until.After(c.cooldownUntil) {
		c.cooldownUntil = until
	}
	streak := c.throttleStreak
	c.cooldownMu.Unlock()

	c.logger.Warn("backend requested cooldown",
		zap.Duration("wait", wait), zap.Int("consecutive", streak))
}

// resetThrottle clears the 429 streak after any non-throttled response.
func (c *Client) resetThrottle() {
	c.cooldownMu.Lock()
	c.throttleStreak = 0
	c.cooldownMu.Unlock()
}
