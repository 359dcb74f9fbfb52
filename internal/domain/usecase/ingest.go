package usecase

import (
	"context"
	"encoding/json"
	"log"

	"casecruncher/internal/domain/entity"
)

type JobStore interface {
	Apply(sessionID string, msg entity.StatusMessage) (entity.Job, bool)
}

// StatusIngestor is the single status-queue subscriber of a gateway
// process. Handle never returns an error: the message is acked no matter
// its shape, so a malformed or foreign event cannot poison-loop the
// status channel.
type StatusIngestor struct {
	Store JobStore
}

func NewStatusIngestor(s JobStore) *StatusIngestor {
	return &StatusIngestor{Store: s}
}

func (i *StatusIngestor) Handle(_ context.Context, body []byte) error {
	var msg entity.StatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Printf("status ingestor: dropping malformed message: %v", err)
		return nil
	}
	if msg.SessionID == "" {
		log.Printf("status ingestor: dropping message without sessionId")
		return nil
	}

	// unknown session: another process owns it, or we restarted — drop
	i.Store.Apply(msg.SessionID, msg)
	return nil
}
