package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/llm-council-router/internal/council"
	"github.com/upb/llm-council-router/models"
	"github.com/upb/llm-council-router/repositories"
	"go.uber.org/zap"
)

var (
	ErrNotStarted     = errors.New("audit service not started")
	ErrAlreadyStarted = errors.New("audit service already started")
	ErrBufferFull     = errors.New("audit event buffer full")
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// AuditService handles asynchronous audit logging
type AuditService struct {
	auditRepo     repositories.AuditRepository
	logger        *zap.Logger
	eventChan     chan *AuditEvent
	workerCount   int
	bufferSize    int
	insertTimeout time.Duration
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	redact        bool
	started       bool
	stopped       bool
	mu            sync.RWMutex

	dropped   int64
	processed int64
	failed    int64
	countMu   sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize    int           // Size of the event buffer channel
	WorkerCount   int           // Number of concurrent workers
	InsertTimeout time.Duration // Per-entry repository deadline
	RedactPrompts bool          // Mask PII and credentials before storing prompts
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:    1000,
		WorkerCount:   2,
		InsertTimeout: 5 * time.Second,
		RedactPrompts: true,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.InsertTimeout <= 0 {
		config.InsertTimeout = defaults.InsertTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:     auditRepo,
		logger:        logger,
		eventChan:     make(chan *AuditEvent, config.BufferSize),
		workerCount:   config.WorkerCount,
		bufferSize:    config.BufferSize,
		insertTimeout: config.InsertTimeout,
		redact:        config.RedactPrompts,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return ErrAlreadyStarted
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Pending events are drained until the timeout expires.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.stopped = true
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an event without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.countMu.Lock()
		s.dropped++
		s.countMu.Unlock()
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)),
			zap.String("request_id", event.Log.RequestID))
		return ErrBufferFull
	}
}

// LogEventBlocking waits until the event is queued or ctx is cancelled.
func (s *AuditService) LogEventBlocking(ctx context.Context, event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}

	select {
	case s.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return ErrNotStarted
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		err := s.processEvent(event)

		s.countMu.Lock()
		if err != nil {
			s.failed++
		} else {
			s.processed++
		}
		s.countMu.Unlock()

		if err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)),
				zap.String("request_id", event.Log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.insertTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	s.countMu.Lock()
	defer s.countMu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       started,
		Processed:     s.processed,
		Failed:        s.failed,
		Dropped:       s.dropped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int   `json:"buffer_size"`
	PendingEvents int   `json:"pending_events"`
	WorkerCount   int   `json:"worker_count"`
	Started       bool  `json:"started"`
	Processed     int64 `json:"processed"`
	Failed        int64 `json:"failed"`
	Dropped       int64 `json:"dropped"`
}

// RouteRecord is everything known about one routed request.
type RouteRecord struct {
	RequestID        string
	Council          string
	Prompt           string
	Subject          string
	Decision         *council.Decision
	Provider         string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	LatencyMs        int
	Err              error
	DryRun           bool
}

// BuildLog converts a RouteRecord into the persisted audit entry.
func BuildLog(rec RouteRecord) *models.AuditLog {
	action := models.AuditActionRouteCompleted
	switch {
	case rec.Err != nil:
		action = models.AuditActionRouteFailed
	case rec.DryRun:
		action = models.AuditActionRouteDecision
	}

	log := models.NewAuditLog(rec.RequestID, action, rec.Council, rec.Prompt).
		WithSubject(rec.Subject)

	if d := rec.Decision; d != nil {
		log.WithModel(d.FinalModel, rec.Provider)
		log.WithDetails(map[string]interface{}{
			"votes":            d.Votes,
			"weighted_results": d.WeightedResults,
			"metadata":         d.Metadata,
		})
	}
	if action == models.AuditActionRouteCompleted {
		log.WithUsage(rec.PromptTokens, rec.CompletionTokens, rec.LatencyMs, rec.Cost)
	}
	if rec.Err != nil {
		log.WithError(rec.Err.Error())
	}
	return log
}

// LogRoute queues the audit entry for a routed request.
func (s *AuditService) LogRoute(rec RouteRecord) error {
	log := BuildLog(rec)
	if s.redact {
		log.Prompt = Redact(log.Prompt)
		if log.ErrorMessage != nil {
			masked := Redact(*log.ErrorMessage)
			log.ErrorMessage = &masked
		}
	}
	return s.LogEvent(&AuditEvent{Log: log})
}
