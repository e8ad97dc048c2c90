// Package scheduler runs the two ambient cron jobs the core needs: the
// automation engine's 30-second time-trigger tick and the daily
// sunrise/sunset refresh (§4.5.1, §9 Design Notes).
package scheduler

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler owns a robfig/cron instance and the fixed job set.
type Scheduler struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID
	jobMapMux sync.RWMutex
	logger    *zap.Logger
}

// New builds a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		jobMap: make(map[string]cron.EntryID),
		logger: logger.Named("scheduler"),
	}
}

// AddJob registers a named cron job and returns its entry ID.
func (s *Scheduler) AddJob(name, spec string, fn func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return 0, err
	}
	s.jobMapMux.Lock()
	s.jobMap[name] = id
	s.jobMapMux.Unlock()
	return id, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopped")
}
