package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// Paths are the auth endpoints relative to Config.BaseURL.
type Paths struct {
	Login   string
	Refresh string
	Logout  string
}

// BreakerConfig configures the circuit breaker in front of the auth server.
type BreakerConfig struct {
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed. 0 never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// Config configures New.
type Config struct {
	BaseURL    string
	Paths      Paths
	HTTPClient *http.Client
	Store      TokenStore
	// RefreshTimeout bounds one refresh call independently of the callers
	// waiting on it.
	RefreshTimeout time.Duration
	Breaker        BreakerConfig
	Logger         *slog.Logger
}

func (c *Config) setDefaults() {
	if c.Paths.Login == "" {
		c.Paths.Login = "/login"
	}
	if c.Paths.Refresh == "" {
		c.Paths.Refresh = "/refresh"
	}
	if c.Paths.Logout == "" {
		c.Paths.Logout = "/logout"
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Store == nil {
		c.Store = NewMemoryTokenStore()
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 10 * time.Second
	}
	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
	if c.Breaker.FailureRatio <= 0 {
		c.Breaker.FailureRatio = 0.5
	}
	if c.Breaker.MinRequests == 0 {
		c.Breaker.MinRequests = 5
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type authResponse struct {
	status int
	body   []byte
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client holds one session against an auth server. It is safe for
// concurrent use.
type Client struct {
	cfg     Config
	base    *url.URL
	breaker *gobreaker.CircuitBreaker[authResponse]
	flight  singleflight.Group
	logger  *slog.Logger

	mu     sync.RWMutex
	state  State
	tokens *Tokens
}

// New builds a Client and restores any pair held by cfg.Store.
func New(cfg Config) (*Client, error) {
	cfg.setDefaults()

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", cfg.BaseURL)
	}

	c := &Client{cfg: cfg, base: base, logger: cfg.Logger}
	c.breaker = gobreaker.NewCircuitBreaker[authResponse](gobreaker.Settings{
		Name:        "goSession-auth",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.Breaker.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	stored, err := cfg.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("client: load tokens: %w", err)
	}
	if stored != nil && stored.RefreshToken != "" {
		c.tokens = stored
		c.state = StateActive
	}
	return c, nil
}

// State reports the current session state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Tokens returns a copy of the held pair, or nil.
func (c *Client) Tokens() *Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return nil
	}
	t := *c.tokens
	return &t
}

// BreakerState exposes the auth breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Login posts credentials as JSON to the login endpoint and stores the
// returned pair.
func (c *Client) Login(ctx context.Context, credentials any) error {
	c.setState(StateLoggingIn)

	res, err := c.call(ctx, c.cfg.Paths.Login, credentials)
	if err != nil {
		c.endSession(false)
		return fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	if res.status != http.StatusOK {
		c.endSession(false)
		serr := serverError(res)
		if res.status >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrAuthUnavailable, serr)
		}
		return fmt.Errorf("%w: %w", ErrUnauthenticated, serr)
	}

	tokens, err := decodeTokens(res)
	if err != nil {
		c.endSession(false)
		return err
	}
	if err := c.cfg.Store.Save(tokens); err != nil {
		c.endSession(false)
		return fmt.Errorf("client: save tokens: %w", err)
	}

	c.mu.Lock()
	c.tokens = &tokens
	c.state = StateActive
	c.mu.Unlock()
	return nil
}

// Logout revokes the refresh token on the server and clears the local pair.
// The local pair is cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	tokens := c.Tokens()
	if tokens == nil {
		return nil
	}
	defer c.endSession(true)

	res, err := c.call(ctx, c.cfg.Paths.Logout, map[string]string{"refresh_token": tokens.RefreshToken})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	if res.status != http.StatusOK {
		return serverError(res)
	}
	return nil
}

// Request builds and sends an authenticated request. target is resolved
// against BaseURL when relative.
func (c *Client) Request(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	u, err := c.base.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	var payload []byte
	if body != nil {
		if payload, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("client: read body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload == nil {
		req.Body = http.NoBody
		req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
	}
	return c.Do(req)
}

// Do sends req with the current access token. On 401 it refreshes at most
// once and retries with the new token. A request body must be replayable,
// either through req.GetBody or by being fully buffered here.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := ensureReplayable(req); err != nil {
		return nil, err
	}
	tokens := c.Tokens()
	if tokens == nil {
		return nil, ErrNotLoggedIn
	}

	resp, err := c.send(req, tokens.AccessToken)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	next, err := c.refreshFrom(req.Context(), tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	return c.send(req, next.AccessToken)
}

// Refresh rotates the held pair now.
func (c *Client) Refresh(ctx context.Context) error {
	tokens := c.Tokens()
	if tokens == nil {
		return ErrNotLoggedIn
	}
	_, err := c.refreshFrom(ctx, tokens.AccessToken)
	return err
}

// refreshFrom returns a pair newer than the one carrying usedAccess. If
// another caller already replaced it, that pair is returned without a new
// refresh. Concurrent callers share one in-flight refresh, which is not
// cancelled when a waiter's ctx is.
func (c *Client) refreshFrom(ctx context.Context, usedAccess string) (Tokens, error) {
	current := c.Tokens()
	if current == nil {
		return Tokens{}, ErrNotLoggedIn
	}
	if current.AccessToken != usedAccess {
		return *current, nil
	}

	ch := c.flight.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RefreshTimeout)
		defer cancel()
		// A flight that finished after current was read already rotated it.
		latest := c.Tokens()
		if latest == nil {
			return Tokens{}, ErrNotLoggedIn
		}
		if latest.RefreshToken != current.RefreshToken {
			return *latest, nil
		}
		return c.refresh(rctx, *latest)
	})

	select {
	case <-ctx.Done():
		return Tokens{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Tokens{}, r.Err
		}
		return r.Val.(Tokens), nil
	}
}

func (c *Client) refresh(ctx context.Context, from Tokens) (Tokens, error) {
	c.setState(StateRefreshing)

	res, err := c.call(ctx, c.cfg.Paths.Refresh, map[string]string{"refresh_token": from.RefreshToken})
	if err != nil {
		c.restoreActive(from)
		c.logger.WarnContext(ctx, "client: refresh failed, keeping current tokens", slog.String("error", err.Error()))
		return Tokens{}, fmt.Errorf("%w: %w", ErrRefreshUnavailable, err)
	}

	switch {
	case res.status == http.StatusOK:
	case res.status == http.StatusUnauthorized || res.status == http.StatusBadRequest:
		if latest, ended := c.endSessionFrom(from); !ended {
			if latest == nil {
				return Tokens{}, ErrNotLoggedIn
			}
			return *latest, nil
		}
		return Tokens{}, fmt.Errorf("%w: %w", ErrUnauthenticated, serverError(res))
	default:
		c.restoreActive(from)
		return Tokens{}, fmt.Errorf("%w: %w", ErrRefreshUnavailable, serverError(res))
	}

	next, err := decodeTokens(res)
	if err != nil {
		c.restoreActive(from)
		return Tokens{}, fmt.Errorf("%w: %w", ErrRefreshUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A logout that ran meanwhile wins.
	if c.tokens == nil || c.tokens.RefreshToken != from.RefreshToken {
		return Tokens{}, ErrNotLoggedIn
	}
	if err := c.cfg.Store.Save(next); err != nil {
		c.logger.ErrorContext(ctx, "client: persist refreshed tokens failed", slog.String("error", err.Error()))
	}
	c.tokens = &next
	c.state = StateActive
	return next, nil
}

func (c *Client) restoreActive(from Tokens) {
	c.mu.Lock()
	if c.tokens != nil && c.tokens.RefreshToken == from.RefreshToken {
		c.state = StateActive
	}
	c.mu.Unlock()
}

// endSessionFrom ends the session only while it still holds from. Otherwise
// it returns the pair that replaced it.
func (c *Client) endSessionFrom(from Tokens) (*Tokens, bool) {
	c.mu.Lock()
	if c.tokens == nil || c.tokens.RefreshToken != from.RefreshToken {
		var latest *Tokens
		if c.tokens != nil {
			t := *c.tokens
			latest = &t
			c.state = StateActive
		}
		c.mu.Unlock()
		return latest, false
	}
	c.tokens = nil
	c.state = StateLoggedOut
	c.mu.Unlock()
	if err := c.cfg.Store.Clear(); err != nil {
		c.logger.Error("client: clear tokens failed", slog.String("error", err.Error()))
	}
	return nil, true
}

func (c *Client) endSession(clearStore bool) {
	c.mu.Lock()
	c.tokens = nil
	c.state = StateLoggedOut
	c.mu.Unlock()
	if clearStore {
		if err := c.cfg.Store.Clear(); err != nil {
			c.logger.Error("client: clear tokens failed", slog.String("error", err.Error()))
		}
	}
}

func (c *Client) send(req *http.Request, access string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("client: reset body: %w", err)
		}
		out.Body = body
	}
	out.Header.Set("Authorization", "Bearer "+access)
	return c.cfg.HTTPClient.Do(out)
}

// call posts payload to an auth endpoint through the breaker. 5xx responses
// and transport errors count as breaker failures; the response is still
// returned for 5xx so its error envelope can be read.
func (c *Client) call(ctx context.Context, path string, payload any) (authResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return authResponse{}, fmt.Errorf("encode request: %w", err)
	}
	target := c.base.JoinPath(path).String()

	res, err := c.breaker.Execute(func() (authResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(raw))
		if err != nil {
			return authResponse{}, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			return authResponse{}, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return authResponse{}, err
		}
		res := authResponse{status: resp.StatusCode, body: body}
		if resp.StatusCode >= http.StatusInternalServerError {
			return res, serverError(res)
		}
		return res, nil
	})
	var serr *ServerError
	if errors.As(err, &serr) {
		return res, nil
	}
	return res, err
}

func ensureReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	payload, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(payload))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	return nil
}

func decodeTokens(res authResponse) (Tokens, error) {
	var env envelope
	if err := json.Unmarshal(res.body, &env); err != nil {
		return Tokens{}, fmt.Errorf("client: decode response: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal(env.Data, &t); err != nil {
		return Tokens{}, fmt.Errorf("client: decode tokens: %w", err)
	}
	if t.AccessToken == "" || t.RefreshToken == "" {
		return Tokens{}, errors.New("client: response carried no tokens")
	}
	return t, nil
}

func serverError(res authResponse) *ServerError {
	serr := &ServerError{Status: res.status}
	var env envelope
	if json.Unmarshal(res.body, &env) == nil && env.Error != nil {
		serr.Code = env.Error.Code
		serr.Message = env.Error.Message
	}
	return serr
}
