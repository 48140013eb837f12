// Package client is the calling collaborator's side of the gaze transport
// contract. It publishes scan offers, pattern refocus deltas, and status
// probes, and resolves the service's asynchronous responses back to the
// blocked caller by correlation token.
//
// The bus is at-most-once: a scan that sees no match-found before the
// caller's deadline is reported as clean. Service unavailability therefore
// degrades to permissive behavior, never to blocking.
package client

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/gaze/errors"
	"github.com/c360/gaze/message"
	"github.com/c360/gaze/pkg/cache"
	"github.com/c360/gaze/pkg/retry"
)

// Bus is the transport surface the client needs. *natsclient.Client
// satisfies it.
type Bus interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
	Publish(ctx context.Context, subject string, data []byte) error
}

// Config holds client settings. Zero values take the defaults below.
type Config struct {
	// Identity stamps outbound envelope metadata.
	Identity string

	// CheckTimeout bounds how long Check waits for a match-found before
	// declaring the text clean. Defaults to 2s.
	CheckTimeout time.Duration

	// DecisionTTL bounds how long a cached scan decision stays valid.
	// Defaults to 5m; the cache also clears on any cache-invalidate
	// broadcast.
	DecisionTTL time.Duration

	// Subject overrides. Empty fields keep the message package defaults.
	OfferSubject      string
	RefocusSubject    string
	StatusSubject     string
	MatchSubject      string
	StatusRespSubject string
	InvalidateSubject string
}

func (c Config) withDefaults() Config {
	if c.Identity == "" {
		c.Identity = "gaze-client"
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 2 * time.Second
	}
	if c.DecisionTTL <= 0 {
		c.DecisionTTL = 5 * time.Minute
	}
	if c.OfferSubject == "" {
		c.OfferSubject = message.OfferForScan
	}
	if c.RefocusSubject == "" {
		c.RefocusSubject = message.RefocusPatterns
	}
	if c.StatusSubject == "" {
		c.StatusSubject = message.StatusCheck
	}
	if c.MatchSubject == "" {
		c.MatchSubject = message.MatchFound
	}
	if c.StatusRespSubject == "" {
		c.StatusRespSubject = message.StatusResponse
	}
	if c.InvalidateSubject == "" {
		c.InvalidateSubject = message.CacheInvalidate
	}
	return c
}

// Client publishes requests and correlates responses.
type Client struct {
	cfg    Config
	bus    Bus
	logger *slog.Logger

	mu            sync.Mutex
	matchWaiters  map[string]chan struct{}
	statusWaiters map[string]chan *message.Status
	started       bool

	decisions *cache.TTLCache[bool]
	retryCfg  retry.Config
}

// New creates a client over the given bus.
func New(cfg Config, bus Bus, logger *slog.Logger) (*Client, error) {
	if bus == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "GazeClient", "New", "bus required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:           cfg.withDefaults(),
		bus:           bus,
		logger:        logger.With("component", "gaze-client"),
		matchWaiters:  make(map[string]chan struct{}),
		statusWaiters: make(map[string]chan *message.Status),
		retryCfg:      retry.DefaultConfig(),
	}, nil
}

// Start subscribes to the service's response subjects. The context also
// scopes the decision cache's janitor.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "GazeClient", "Start", "check started state")
	}

	decisions, err := cache.NewTTL[bool](ctx, c.cfg.DecisionTTL, time.Minute)
	if err != nil {
		return errors.Wrap(err, "GazeClient", "Start", "create decision cache")
	}
	c.decisions = decisions

	subs := map[string]func(context.Context, []byte){
		c.cfg.MatchSubject:      c.handleMatchFound,
		c.cfg.StatusRespSubject: c.handleStatusResponse,
		c.cfg.InvalidateSubject: c.handleInvalidate,
	}
	for subject, handler := range subs {
		if err := c.bus.Subscribe(ctx, subject, handler); err != nil {
			return errors.WrapTransient(err, "GazeClient", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	c.started = true
	return nil
}

// Check tests text against the service's active pattern set. It returns
// true when the service reports a match before the deadline; silence or
// unavailability reports clean.
func (c *Client) Check(ctx context.Context, text string) (bool, error) {
	if err := c.requireStarted(); err != nil {
		return false, err
	}

	key := decisionKey(text)
	if matched, ok := c.decisions.Get(key); ok {
		return matched, nil
	}

	token, err := newToken()
	if err != nil {
		return false, err
	}

	waiter := make(chan struct{}, 1)
	c.mu.Lock()
	c.matchWaiters[string(token)] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.matchWaiters, string(token))
		c.mu.Unlock()
	}()

	if err := c.publish(ctx, c.cfg.OfferSubject, &message.ScanOffer{
		Token: token,
		Text:  text,
		Meta:  message.NewMeta(c.cfg.Identity),
	}); err != nil {
		return false, err
	}

	deadline, cancel := context.WithTimeout(ctx, c.cfg.CheckTimeout)
	defer cancel()

	select {
	case <-waiter:
		c.decisions.Set(key, true)
		return true, nil
	case <-deadline.Done():
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// No response before the deadline: clean by contract.
		c.decisions.Set(key, false)
		return false, nil
	}
}

// Refocus submits an add/remove pattern delta. Fire and forget: the only
// acknowledgement is the service's cache-invalidate broadcast.
func (c *Client) Refocus(ctx context.Context, add, remove []string) error {
	if err := c.requireStarted(); err != nil {
		return err
	}
	return c.publish(ctx, c.cfg.RefocusSubject, &message.Refocus{
		Add:    add,
		Remove: remove,
		Meta:   message.NewMeta(c.cfg.Identity),
	})
}

// Status probes the service and waits for its response until the context
// deadline.
func (c *Client) Status(ctx context.Context) (*message.Status, error) {
	if err := c.requireStarted(); err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	waiter := make(chan *message.Status, 1)
	c.mu.Lock()
	c.statusWaiters[string(token)] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.statusWaiters, string(token))
		c.mu.Unlock()
	}()

	if err := c.publish(ctx, c.cfg.StatusSubject, &message.StatusProbe{
		Token: token,
		Meta:  message.NewMeta(c.cfg.Identity),
	}); err != nil {
		return nil, err
	}

	select {
	case status := <-waiter:
		return status, nil
	case <-ctx.Done():
		return nil, errors.WrapTransient(ctx.Err(), "GazeClient", "Status", "wait for status response")
	}
}

func (c *Client) handleMatchFound(_ context.Context, data []byte) {
	match, err := message.Decode[message.Match](data)
	if err != nil {
		c.logger.Debug("undecodable match-found message", "error", err)
		return
	}

	c.mu.Lock()
	waiter := c.matchWaiters[string(match.Token)]
	c.mu.Unlock()
	if waiter != nil {
		select {
		case waiter <- struct{}{}:
		default:
		}
	}
}

func (c *Client) handleStatusResponse(_ context.Context, data []byte) {
	status, err := message.Decode[message.Status](data)
	if err != nil {
		c.logger.Debug("undecodable status response", "error", err)
		return
	}

	c.mu.Lock()
	waiter := c.statusWaiters[string(status.Token)]
	c.mu.Unlock()
	if waiter != nil {
		select {
		case waiter <- status:
		default:
		}
	}
}

// handleInvalidate clears cached scan decisions; the pattern set changed
// underneath them.
func (c *Client) handleInvalidate(_ context.Context, data []byte) {
	notice, err := message.Decode[message.Invalidation](data)
	if err != nil {
		c.logger.Debug("undecodable invalidation notice", "error", err)
		return
	}

	c.decisions.Clear()
	c.logger.Debug("cleared decision cache",
		"topic", notice.Topic, "from", notice.Identity)
}

// publish encodes and sends a payload, retrying transient bus failures.
func (c *Client) publish(ctx context.Context, subject string, payload any) error {
	data, err := message.Encode(payload)
	if err != nil {
		return err
	}

	return retry.Do(ctx, c.retryCfg, func() error {
		if err := c.bus.Publish(ctx, subject, data); err != nil {
			if errors.IsTransient(err) {
				return err
			}
			return retry.NonRetryable(err)
		}
		return nil
	})
}

func (c *Client) requireStarted() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.WrapFatal(errors.ErrNotStarted, "GazeClient", "requireStarted", "check started state")
	}
	return nil
}

// decisionKey hashes scanned text so the cache never holds raw content.
func decisionKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// newToken returns 16 random bytes for request correlation.
func newToken() ([]byte, error) {
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return nil, errors.Wrap(err, "GazeClient", "newToken", "generate correlation token")
	}
	return token, nil
}
