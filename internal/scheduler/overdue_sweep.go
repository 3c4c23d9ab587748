package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shelfwise/circulation/internal/audit"
	"github.com/shelfwise/circulation/internal/config"
	"github.com/shelfwise/circulation/internal/lending"
	"github.com/shelfwise/circulation/internal/tasks"
)

// OverdueSweeper runs the periodic batch sweep that promotes stale borrowed
// loans to overdue. It uses the same transition rule as the lazy read-path
// check, so the two modes can never diverge, and it enqueues one overdue
// notice task per loan it transitions.
type OverdueSweeper struct {
	service    *lending.Service
	taskClient *tasks.Client
	auditor    *audit.Auditor
	cfg        config.OverdueSweep

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSweeping bool
	cancelFunc context.CancelFunc
}

// NewOverdueSweeper creates a new sweeper instance. The task client and
// auditor are optional; without them the sweep still transitions loans and
// just skips notices and audit records.
func NewOverdueSweeper(service *lending.Service, taskClient *tasks.Client, auditor *audit.Auditor, cfg config.OverdueSweep) *OverdueSweeper {
	return &OverdueSweeper{
		service:    service,
		taskClient: taskClient,
		auditor:    auditor,
		cfg:        cfg,
		cron:       cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if the sweep is enabled.
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Enabled {
		log.Printf("Overdue sweep scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Overdue sweep scheduler: started with schedule '%s'", s.cfg.Schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep to finish.
func (s *OverdueSweeper) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	// A mid-flight sweep needs the mutex for its cleanup, so the drain
	// wait must happen with the lock released.
	<-s.cron.Stop().Done()

	if cancel != nil {
		cancel()
	}

	log.Printf("Overdue sweep scheduler: stopped")
}

// RunNow triggers an immediate sweep.
func (s *OverdueSweeper) RunNow() {
	go s.runSweep()
}

// IsRunning returns whether the scheduler is active.
func (s *OverdueSweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sweep will occur.
func (s *OverdueSweeper) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSweep performs the actual sweep.
func (s *OverdueSweeper) runSweep() {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		log.Printf("Overdue sweep: skipped (already sweeping)")
		return
	}
	s.isSweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	swept, err := s.service.SweepOverdue(ctx, time.Now())
	if err != nil {
		log.Printf("Overdue sweep: failed: %v", err)
		return
	}

	if len(swept) == 0 {
		log.Printf("Overdue sweep: no loans to transition")
		return
	}

	log.Printf("Overdue sweep: marked %d loans overdue in %v",
		len(swept), time.Since(startTime).Round(time.Millisecond))

	if s.auditor != nil {
		if _, err := s.auditor.RecordSweep(len(swept)); err != nil {
			log.Printf("Overdue sweep: failed to record audit event: %v", err)
		}
	}

	if s.taskClient != nil {
		for _, loan := range swept {
			_, err := s.taskClient.Add(tasks.OverdueNoticeTask{LoanID: loan.ID}).Ctx(ctx).Save()
			if err != nil {
				log.Printf("Overdue sweep: failed to enqueue notice for loan %d: %v", loan.ID, err)
			}
		}
	}
}
