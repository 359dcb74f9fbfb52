// Package store holds the in-memory session-keyed job records of one
// gateway process. The status ingestor is the only status writer; API
// handlers get deep-copied snapshots, so readers never observe a partial
// merge. Records do not survive a restart — recovery goes through the
// artifact store instead.
package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"casecruncher/internal/domain/entity"
)

type Store struct {
	mu        sync.RWMutex
	jobs      map[string]entity.Job
	retention time.Duration
}

// New creates an empty store. Terminal jobs are evicted once they have
// been finished for longer than retention.
func New(retention time.Duration) *Store {
	return &Store{
		jobs:      make(map[string]entity.Job),
		retention: retention,
	}
}

// Create registers a fresh job record. SessionIDs are generated
// collision-resistant, so a duplicate is a caller bug.
func (s *Store) Create(job entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.SessionID]; exists {
		return fmt.Errorf("session %s already exists", job.SessionID)
	}
	s.jobs[job.SessionID] = job.Clone()
	return nil
}

// Get returns a snapshot of the job, if this process owns the session.
func (s *Store) Get(sessionID string) (entity.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[sessionID]
	if !ok {
		return entity.Job{}, false
	}
	return job.Clone(), true
}

// Apply merges a status message into the owning record and returns the
// updated snapshot. Unknown sessions report ok=false and change nothing.
func (s *Store) Apply(sessionID string, msg entity.StatusMessage) (entity.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[sessionID]
	if !ok {
		return entity.Job{}, false
	}
	updated := entity.ApplyStatus(job, msg)
	s.jobs[sessionID] = updated
	return updated.Clone(), true
}

// AppendCommand records operator feedback on a live session.
func (s *Store) AppendCommand(sessionID string, entry entity.CommandEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[sessionID]
	if !ok {
		return false
	}
	job.Commands = append(append([]entity.CommandEntry(nil), job.Commands...), entry)
	s.jobs[sessionID] = job
	return true
}

// AppendLog adds one local log line. Logs are never reconstructed.
func (s *Store) AppendLog(sessionID, line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[sessionID]
	if !ok {
		return false
	}
	job.Logs = append(append([]string(nil), job.Logs...), line)
	s.jobs[sessionID] = job
	return true
}

// Sweep evicts terminal jobs finished before now minus retention and
// returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, job := range s.jobs {
		if !job.Status.IsTerminal() || job.EndTime == nil {
			continue
		}
		if now.Sub(*job.EndTime) > s.retention {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs Sweep on a fixed interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(time.Now()); n > 0 {
				log.Printf("evicted %d finished sessions", n)
			}
		}
	}
}

// Len reports how many sessions are resident.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
