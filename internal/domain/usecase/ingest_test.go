package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casecruncher/internal/domain/entity"
	"casecruncher/internal/store"
)

func TestIngestorMergesIntoOwnedSession(t *testing.T) {
	s := store.New(time.Hour)
	require.NoError(t, s.Create(entity.NewJob("s-1", "input", true)))
	ing := NewStatusIngestor(s)

	raw, err := json.Marshal(entity.StatusMessage{
		SessionID:       "s-1",
		Status:          entity.StatusRunning,
		Progress:        38,
		CurrentAgent:    "architecture-design",
		CompletedAgents: []string{"requirements-analysis"},
	})
	require.NoError(t, err)
	require.NoError(t, ing.Handle(context.Background(), raw))

	job, _ := s.Get("s-1")
	assert.Equal(t, entity.StatusRunning, job.Status)
	assert.Equal(t, 38, job.Progress)
	assert.Equal(t, "architecture-design", job.CurrentAgent)
	assert.Len(t, job.Telemetry, 1)
}

func TestIngestorDropsUnknownSessionSilently(t *testing.T) {
	s := store.New(time.Hour)
	ing := NewStatusIngestor(s)

	raw, _ := json.Marshal(entity.StatusMessage{SessionID: "foreign", Status: entity.StatusRunning})

	// nil return means the delivery is acked and gone
	assert.NoError(t, ing.Handle(context.Background(), raw))
	assert.Zero(t, s.Len())
}

func TestIngestorAcksMalformedMessages(t *testing.T) {
	ing := NewStatusIngestor(store.New(time.Hour))

	assert.NoError(t, ing.Handle(context.Background(), []byte("gibberish")))
	assert.NoError(t, ing.Handle(context.Background(), []byte(`{"status":"running"}`)))
}

func TestFeedbackBoardHandleCommand(t *testing.T) {
	board := NewFeedbackBoard()

	raw, _ := json.Marshal(entity.CommandMessage{
		SessionID: "s-1",
		Command:   "shorter sections please",
		IssuedAt:  time.Now().UTC(),
		Source:    "api",
	})
	require.NoError(t, board.HandleCommand(context.Background(), raw))
	require.NoError(t, board.HandleCommand(context.Background(), []byte("junk")))

	assert.Equal(t, []string{"shorter sections please"}, board.Drain("s-1"))
	assert.Empty(t, board.Drain("s-1"))
}
