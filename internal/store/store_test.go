package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casecruncher/internal/domain/entity"
)

func TestCreateAndGetReturnsSnapshot(t *testing.T) {
	s := New(time.Hour)
	require.NoError(t, s.Create(entity.NewJob("s-1", "input", false)))

	snap, ok := s.Get("s-1")
	require.True(t, ok)

	// mutating the snapshot must not leak into the store
	snap.CompletedAgents = append(snap.CompletedAgents, "tampered")
	again, _ := s.Get("s-1")
	assert.Empty(t, again.CompletedAgents)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	s := New(time.Hour)
	require.NoError(t, s.Create(entity.NewJob("s-1", "input", false)))
	assert.Error(t, s.Create(entity.NewJob("s-1", "other", true)))
}

func TestApplyUnknownSession(t *testing.T) {
	s := New(time.Hour)
	_, ok := s.Apply("ghost", entity.StatusMessage{SessionID: "ghost", Status: entity.StatusRunning})
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	s := New(time.Hour)
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s-%d", i)
		require.NoError(t, s.Create(entity.NewJob(id, "input", true)))
		wg.Add(1)
		go func(id string, progress int) {
			defer wg.Done()
			s.Apply(id, entity.StatusMessage{SessionID: id, Status: entity.StatusRunning, Progress: progress})
		}(id, i+1)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s-%d", i)
		job, ok := s.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, i+1, job.Progress, id)
	}
}

func TestAppendCommand(t *testing.T) {
	s := New(time.Hour)
	require.NoError(t, s.Create(entity.NewJob("s-1", "input", false)))

	ok := s.AppendCommand("s-1", entity.CommandEntry{Command: "focus on cost", Source: "api"})
	require.True(t, ok)
	assert.False(t, s.AppendCommand("ghost", entity.CommandEntry{Command: "x"}))

	job, _ := s.Get("s-1")
	require.Len(t, job.Commands, 1)
	assert.Equal(t, "focus on cost", job.Commands[0].Command)
}

func TestSweepEvictsOnlyExpiredTerminalJobs(t *testing.T) {
	s := New(time.Hour)
	require.NoError(t, s.Create(entity.NewJob("live", "input", false)))
	require.NoError(t, s.Create(entity.NewJob("done", "input", false)))
	require.NoError(t, s.Create(entity.NewJob("flopped", "input", false)))

	s.Apply("done", entity.StatusMessage{SessionID: "done", Status: entity.StatusCompleted, Progress: 100})
	s.Apply("flopped", entity.StatusMessage{SessionID: "flopped", Status: entity.StatusFailed, Error: "x"})

	// age the completed one past retention
	evicted := s.Sweep(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 2, evicted)

	_, liveOK := s.Get("live")
	assert.True(t, liveOK)
	assert.Equal(t, 1, s.Len())
}
