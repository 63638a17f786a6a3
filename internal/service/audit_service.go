package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/security"
)

const (
	defaultEventBuffer = 256
	persistTimeout     = 2 * time.Second
)

type securityEventRepository interface {
	Create(ctx context.Context, event *models.SecurityEvent) error
}

// SecurityEventService logs, counts and persists security events. Persistence runs on a
// background worker fed by a bounded buffer so request handling never waits on the database.
type SecurityEventService struct {
	repo    securityEventRepository
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	events  chan models.SecurityEvent
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSecurityEventService builds the recorder. A nil repo disables persistence.
func NewSecurityEventService(repo securityEventRepository, metrics *MetricsService, logger *zap.Logger, bufferSize int) *SecurityEventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = defaultEventBuffer
	}
	return &SecurityEventService{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		events:  make(chan models.SecurityEvent, bufferSize),
	}
}

// Start launches the persistence worker. Safe to call once. Only Stop ends the worker;
// cancelling ctx does not.
func (s *SecurityEventService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.repo == nil {
		return
	}
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.wg.Add(1)
	go s.worker(runCtx)
	s.started = true
}

// Stop flushes buffered events and waits for the worker to exit.
func (s *SecurityEventService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()
	s.wg.Wait()
}

// Record writes a structured log line, bumps the event counter and queues the event for persistence.
func (s *SecurityEventService) Record(ctx context.Context, event models.SecurityEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}

	fields := []zap.Field{
		zap.String("event", event.Event),
		zap.String("actor", event.Actor),
		zap.String("outcome", event.Outcome),
		zap.String("ip", event.IPAddress),
		zap.String("user_agent", event.UserAgent),
	}
	if event.Path != "" {
		fields = append(fields, zap.String("path", event.Path))
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}
	if event.Outcome == security.OutcomeSuccess {
		s.logger.Info("security_event", fields...)
	} else {
		s.logger.Warn("security_event", fields...)
	}
	s.metrics.RecordSecurityEvent(event.Event, event.Outcome)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	select {
	case s.events <- event:
	default:
		s.metrics.RecordDroppedSecurityEvent()
		s.logger.Warn("security event dropped", zap.String("event", event.Event))
	}
}

func (s *SecurityEventService) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case event := <-s.events:
					s.persist(context.Background(), event)
				default:
					return
				}
			}
		case event := <-s.events:
			s.persist(ctx, event)
		}
	}
}

func (s *SecurityEventService) persist(ctx context.Context, event models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.repo.Create(ctx, &event); err != nil {
		s.logger.Warn("failed to persist security event", zap.String("event", event.Event), zap.Error(err))
	}
}
