package usecase

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"casecruncher/internal/domain/entity"
)

// FeedbackBoard collects advisory operator commands on the worker side.
// The pipeline drains pending feedback before each step and folds it
// into the agent context. Purely best-effort: anything arriving after
// the last step is dropped with the session.
type FeedbackBoard struct {
	mu      sync.Mutex
	pending map[string][]string
}

func NewFeedbackBoard() *FeedbackBoard {
	return &FeedbackBoard{pending: make(map[string][]string)}
}

func (b *FeedbackBoard) Add(sessionID, command string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[sessionID] = append(b.pending[sessionID], command)
}

// Drain returns and clears the queued feedback for a session.
func (b *FeedbackBoard) Drain(sessionID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending[sessionID]
	delete(b.pending, sessionID)
	return out
}

// HandleCommand is the command-queue consumer entry point. Commands are
// acked unconditionally; this channel carries no guarantees.
func (b *FeedbackBoard) HandleCommand(_ context.Context, body []byte) error {
	var msg entity.CommandMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("feedback: dropping malformed command: %v", err)
		return nil
	}
	if msg.SessionID == "" || msg.Command == "" {
		return nil
	}
	b.Add(msg.SessionID, msg.Command)
	return nil
}
