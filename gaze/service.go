// Package gaze implements the scanning service: a single-loop component
// that receives text over the bus, tests it against the active pattern
// set, and applies administrator-driven pattern updates.
//
// All three inbound subjects feed one bounded mailbox drained by one
// dispatch goroutine, so scans never race a pattern swap and the
// matcher/pattern-set pair needs no locking on the hot path. The bus is
// best-effort at-most-once; callers infer "no match" from silence before
// their own deadline, never from a negative response.
package gaze

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/gaze/component"
	"github.com/c360/gaze/errors"
	"github.com/c360/gaze/matcher"
	"github.com/c360/gaze/message"
	"github.com/c360/gaze/patternstore"
	"github.com/c360/gaze/pkg/mailbox"
	"github.com/c360/gaze/pkg/timestamp"
)

const serviceName = "gaze-service"

// Bus is the transport surface the service needs. *natsclient.Client
// satisfies it.
type Bus interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subjects names the bus subjects the service listens and publishes on.
type Subjects struct {
	OfferForScan    string
	RefocusPatterns string
	StatusCheck     string
	MatchFound      string
	StatusResponse  string
	CacheInvalidate string
}

// DefaultSubjects returns the standard subject names.
func DefaultSubjects() Subjects {
	return Subjects{
		OfferForScan:    message.OfferForScan,
		RefocusPatterns: message.RefocusPatterns,
		StatusCheck:     message.StatusCheck,
		MatchFound:      message.MatchFound,
		StatusResponse:  message.StatusResponse,
		CacheInvalidate: message.CacheInvalidate,
	}
}

func (s Subjects) withDefaults() Subjects {
	d := DefaultSubjects()
	if s.OfferForScan == "" {
		s.OfferForScan = d.OfferForScan
	}
	if s.RefocusPatterns == "" {
		s.RefocusPatterns = d.RefocusPatterns
	}
	if s.StatusCheck == "" {
		s.StatusCheck = d.StatusCheck
	}
	if s.MatchFound == "" {
		s.MatchFound = d.MatchFound
	}
	if s.StatusResponse == "" {
		s.StatusResponse = d.StatusResponse
	}
	if s.CacheInvalidate == "" {
		s.CacheInvalidate = d.CacheInvalidate
	}
	return s
}

// Config holds the service's own settings.
type Config struct {
	// Identity is echoed in status responses and invalidation notices.
	Identity string
	// DataDir is the pattern store's base directory.
	DataDir string
	// MailboxSize bounds the inbound queue; overflow drops the oldest
	// queued message. Defaults to 1024.
	MailboxSize int
	// Subjects overrides the default subject names. Empty fields keep
	// the defaults.
	Subjects Subjects
}

// inbound is one bus message awaiting dispatch.
type inbound struct {
	subject string
	data    []byte
}

// Service is the scanning component. It implements component.Discoverable.
type Service struct {
	name     string
	identity string
	subjects Subjects
	store    *patternstore.Store
	bus      Bus
	logger   *slog.Logger
	metrics  *serviceMetrics

	// engine and patterns are written only by the dispatch loop (and
	// Initialize, which runs before it). The mutex covers reads from
	// other goroutines.
	mu       sync.RWMutex
	engine   matcher.Engine
	patterns []string

	inbox        *mailbox.Mailbox[inbound]
	shutdown     chan struct{}
	running      bool
	startTime    time.Time
	processStart time.Time
	lifecycleMu  sync.Mutex
	wg           sync.WaitGroup

	messagesReceived  int64
	messagesPublished int64
	errorCount        int64
	lastActivity      atomic.Int64 // unix millis
}

// New creates the service from configuration and shared dependencies.
func New(cfg Config, deps component.Dependencies) (*Service, error) {
	if cfg.Identity == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "GazeService", "New", "identity required")
	}

	logger := deps.GetLogger().With("component", serviceName)

	store, err := patternstore.New(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	metrics, err := newServiceMetrics(deps.MetricsRegistry)
	if err != nil {
		logger.Error("failed to initialize gaze metrics", "error", err)
		metrics = nil // continue without metrics
	}

	var bus Bus
	if deps.NATSClient != nil {
		bus = deps.NATSClient
	}

	return newService(cfg, store, bus, logger, metrics)
}

// newService wires a service around an explicit bus. Tests use this with
// an in-process fake.
func newService(cfg Config, store *patternstore.Store, bus Bus, logger *slog.Logger, metrics *serviceMetrics) (*Service, error) {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 1024
	}
	inbox, err := mailbox.New[inbound](cfg.MailboxSize)
	if err != nil {
		return nil, errors.WrapInvalid(err, "GazeService", "New", "create mailbox")
	}

	return &Service{
		name:         serviceName,
		identity:     cfg.Identity,
		subjects:     cfg.Subjects.withDefaults(),
		store:        store,
		bus:          bus,
		logger:       logger,
		metrics:      metrics,
		inbox:        inbox,
		shutdown:     make(chan struct{}),
		processStart: time.Now(),
	}, nil
}

// Initialize loads the durable pattern state. The service reaches Ready
// regardless of the outcome; a missing or unusable pattern set just means
// scans are no-ops until the next refocus.
func (s *Service) Initialize() error {
	engine, patterns := s.store.Load()

	s.mu.Lock()
	s.engine = engine
	s.patterns = patterns
	s.mu.Unlock()

	s.metrics.setPatternCount(len(patterns))
	return nil
}

// Start subscribes to the three inbound subjects and launches the
// dispatch loop. Subscription failure is fatal; an external supervisor
// restarts the process.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "GazeService", "Start", "check running state")
	}
	if s.bus == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "GazeService", "Start", "bus client required")
	}

	for _, subject := range []string{
		s.subjects.OfferForScan,
		s.subjects.RefocusPatterns,
		s.subjects.StatusCheck,
	} {
		subj := subject
		handler := func(_ context.Context, data []byte) {
			s.enqueue(subj, data)
		}
		if err := s.bus.Subscribe(ctx, subj, handler); err != nil {
			return errors.WrapFatal(err, "GazeService", "Start", fmt.Sprintf("subscribe to %s", subj))
		}
	}

	s.wg.Add(1)
	go s.dispatchLoop(ctx)

	s.running = true
	s.startTime = time.Now()

	s.mu.RLock()
	patternCount := len(s.patterns)
	s.mu.RUnlock()

	s.logger.Info("gaze service started",
		"identity", s.identity,
		"patterns", patternCount,
		"offer_subject", s.subjects.OfferForScan)
	return nil
}

// Stop shuts down the dispatch loop and releases the matcher.
func (s *Service) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.running {
		return nil
	}

	close(s.shutdown)
	s.inbox.Close()

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("shutdown timeout after %v", timeout),
			"GazeService", "Stop", "graceful shutdown")
	}

	s.mu.Lock()
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Warn("failed to close matcher", "error", err)
		}
		s.engine = nil
	}
	s.mu.Unlock()

	s.running = false
	s.logger.Info("gaze service stopped")
	return nil
}

// enqueue is the subscription callback. It never blocks; overflow drops
// the oldest queued message, which the at-most-once bus already permits.
func (s *Service) enqueue(subject string, data []byte) {
	atomic.AddInt64(&s.messagesReceived, 1)
	if s.inbox.Put(inbound{subject: subject, data: data}) {
		s.metrics.recordDrop(s.name)
		s.logger.Warn("mailbox overflow, dropped oldest message",
			"subject", subject, "dropped_total", s.inbox.Dropped())
	}
}

// dispatchLoop drains the mailbox one message at a time. It is the only
// goroutine that touches the engine/patterns pair.
func (s *Service) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ctx.Done():
			return
		case <-s.inbox.Ready():
			for {
				item, ok := s.inbox.Take()
				if !ok {
					break
				}
				s.dispatch(ctx, item)
			}
		}
	}
}

// dispatch routes one message to its handler. Any error or panic is
// logged with the offending payload and the loop continues; a malformed
// or adversarial message must never take the service down.
func (s *Service) dispatch(ctx context.Context, item inbound) {
	s.lastActivity.Store(timestamp.Now())

	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&s.errorCount, 1)
			s.metrics.recordError(s.name, "panic")
			s.logger.Error("panic while handling message",
				"subject", item.subject,
				"payload", string(item.data),
				"panic", r)
		}
	}()

	var err error
	switch item.subject {
	case s.subjects.OfferForScan:
		err = s.handleScan(ctx, item.data)
	case s.subjects.RefocusPatterns:
		err = s.handleRefocus(ctx, item.data)
	case s.subjects.StatusCheck:
		err = s.handleStatus(ctx, item.data)
	default:
		err = fmt.Errorf("unroutable subject %q", item.subject)
	}

	if err != nil {
		atomic.AddInt64(&s.errorCount, 1)
		s.logger.Error("message handling failed",
			"subject", item.subject,
			"payload", string(item.data),
			"error", err)
	}
}

// handleScan tests offered text against the active matcher. A match
// publishes match-found with the caller's token; a clean scan publishes
// nothing. Scan failures degrade to "no match" so callers time out into
// permissive behavior rather than blocking.
func (s *Service) handleScan(ctx context.Context, data []byte) error {
	offer, err := message.Decode[message.ScanOffer](data)
	if err != nil {
		s.metrics.recordError(s.name, "decode")
		return err
	}

	if s.engine == nil {
		s.metrics.recordScan(s.name, false, 0)
		return nil
	}

	start := time.Now()
	m, err := s.engine.Scan([]byte(offer.Text))
	duration := time.Since(start)
	if err != nil {
		s.metrics.recordError(s.name, "scan")
		s.logger.Warn("scan failed, treating as non-match", "error", err)
		return nil
	}

	s.metrics.recordScan(s.name, m != nil, duration)
	if m == nil {
		return nil
	}

	s.logger.Debug("pattern matched",
		"pattern_id", m.PatternID,
		"span_start", m.Start,
		"span_end", m.End,
		"scan_us", duration.Microseconds())

	return s.publish(ctx, s.subjects.MatchFound, &message.Match{
		Token: offer.Token,
		Meta:  message.NewMeta(s.identity),
	})
}

// handleRefocus applies an add/remove delta. All or nothing: a rejected
// update leaves the previous matcher, pattern set, and disk state fully
// intact. A successful update swaps the pair and broadcasts a
// cache-invalidation notice.
func (s *Service) handleRefocus(ctx context.Context, data []byte) error {
	req, err := message.Decode[message.Refocus](data)
	if err != nil {
		s.metrics.recordError(s.name, "decode")
		return err
	}

	engine, patterns, err := s.store.Update(s.patterns, req.Add, req.Remove)
	if err != nil {
		s.metrics.recordRefocus(s.name, false)
		s.metrics.recordError(s.name, "refocus")
		return err
	}

	s.mu.Lock()
	old := s.engine
	s.engine = engine
	s.patterns = patterns
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("failed to close replaced matcher", "error", err)
		}
	}

	s.metrics.recordRefocus(s.name, true)
	s.metrics.setPatternCount(len(patterns))

	return s.publish(ctx, s.subjects.CacheInvalidate, &message.Invalidation{
		Topic:    message.ScanDecisions,
		Identity: s.identity,
		Meta:     message.NewMeta(s.identity),
	})
}

// handleStatus answers a liveness probe with the service identity,
// process start time, and the active pattern list.
func (s *Service) handleStatus(ctx context.Context, data []byte) error {
	probe, err := message.Decode[message.StatusProbe](data)
	if err != nil {
		s.metrics.recordError(s.name, "decode")
		return err
	}

	patterns := make([]string, len(s.patterns))
	copy(patterns, s.patterns)

	s.metrics.recordStatus(s.name)
	return s.publish(ctx, s.subjects.StatusResponse, &message.Status{
		Token:     probe.Token,
		Identity:  s.identity,
		StartUnix: timestamp.UnixSeconds(s.processStart),
		Patterns:  patterns,
		Meta:      message.NewMeta(s.identity),
	})
}

func (s *Service) publish(ctx context.Context, subject string, payload any) error {
	data, err := message.Encode(payload)
	if err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, subject, data); err != nil {
		s.metrics.recordError(s.name, "publish")
		return errors.WrapTransient(err, "GazeService", "publish", fmt.Sprintf("publish to %s", subject))
	}
	atomic.AddInt64(&s.messagesPublished, 1)
	return nil
}

// Meta describes the service for operational tooling.
func (s *Service) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        "service",
		Description: "Scans offered text against a hot-reloadable pattern set",
		Version:     "1.0.0",
	}
}

// Health reports a point-in-time health snapshot.
func (s *Service) Health() component.HealthStatus {
	s.lifecycleMu.Lock()
	running := s.running
	startTime := s.startTime
	s.lifecycleMu.Unlock()

	status := component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&s.errorCount)),
	}
	if running {
		status.Uptime = time.Since(startTime)
	} else {
		status.Message = "service not running"
	}
	return status
}

// DataFlow summarizes message traffic through the service.
func (s *Service) DataFlow() component.FlowMetrics {
	received := atomic.LoadInt64(&s.messagesReceived)
	errs := atomic.LoadInt64(&s.errorCount)

	var errorRate float64
	if received > 0 {
		errorRate = float64(errs) / float64(received)
	}

	return component.FlowMetrics{
		MessagesReceived:  received,
		MessagesPublished: atomic.LoadInt64(&s.messagesPublished),
		ErrorRate:         errorRate,
		LastActivity:      timestamp.ToTime(s.lastActivity.Load()),
	}
}

// Patterns returns a copy of the active pattern set.
func (s *Service) Patterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}
