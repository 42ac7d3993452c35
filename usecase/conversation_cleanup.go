package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/echocoach/domain/repositories"
	"github.com/satriahrh/echocoach/internal/metrics"
)

// ConversationCleanupService periodically marks stale conversations as expired
type ConversationCleanupService struct {
	repo     repositories.ConversationRepository
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewConversationCleanupService creates a new cleanup service
func NewConversationCleanupService(repo repositories.ConversationRepository, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *ConversationCleanupService {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &ConversationCleanupService{
		repo:     repo,
		interval: interval,
		metrics:  m,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background cleanup loop
func (s *ConversationCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Conversation cleanup service started", zap.Duration("interval", s.interval))
}

// Stop ends the loop and waits for a running pass to finish
func (s *ConversationCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		<-s.done
		s.logger.Info("Conversation cleanup service stopped")
	})
}

func (s *ConversationCleanupService) cleanupLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce expires every active conversation past its deadline
func (s *ConversationCleanupService) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	count, err := s.repo.ExpireConversations(ctx, time.Now())
	if err != nil {
		s.logger.Error("Failed to expire conversations", zap.Error(err))
		return 0
	}

	s.metrics.AddExpired(count)
	if count > 0 {
		s.logger.Info("Expired conversations", zap.Int64("count", count))
	}
	return count
}
