package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"casecruncher/internal/config"
	"casecruncher/internal/domain/entity"
	"casecruncher/internal/store"
	"casecruncher/pkg/utils"
)

type Publisher interface {
	Publish(ctx context.Context, body json.RawMessage) error
}

type ArtifactReader interface {
	List(ctx context.Context, prefix string) ([]entity.ArtifactDescriptor, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// JobUseCase is the submission-side surface: create and enqueue jobs,
// expose status (with artifact-store reconstruction when in-memory state
// is gone), accept commands, and list files. Artifacts and publishers
// may be nil when the matching configuration is absent; the affected
// operations then report configuration errors instead of failing wholesale.
type JobUseCase struct {
	Store        *store.Store
	Artifacts    ArtifactReader
	JobPublisher Publisher
	CmdPublisher Publisher
	Cfg          *config.Config

	// enqueue retry policy, overridable in tests
	EnqueueTimeout time.Duration
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryAttempts  int
}

func NewJobUseCase(s *store.Store, artifacts ArtifactReader, jobPub, cmdPub Publisher, cfg *config.Config) *JobUseCase {
	return &JobUseCase{
		Store:        s,
		Artifacts:    artifacts,
		JobPublisher: jobPub,
		CmdPublisher: cmdPub,
		Cfg:          cfg,

		EnqueueTimeout: 30 * time.Second,
		RetryBaseDelay: 500 * time.Millisecond,
		RetryMaxDelay:  10 * time.Second,
		RetryAttempts:  5,
	}
}

type SubmitResponse struct {
	SessionID string           `json:"sessionId"`
	Status    entity.JobStatus `json:"status"`
	StatusURL string           `json:"statusUrl"`
	StreamURL string           `json:"streamUrl"`
}

// Submit validates, creates the queued record, and answers immediately.
// The queue publish happens after the response; an enqueue failure is
// only visible through a later status lookup, where the job shows failed
// with the captured error.
func (u *JobUseCase) Submit(ctx context.Context, caseStudyInput string, quickMode bool) (SubmitResponse, error) {
	if isBlank(caseStudyInput) {
		return SubmitResponse{}, &entity.ValidationError{Field: "caseStudyInput", Reason: "must not be empty"}
	}

	if missing := u.Cfg.Missing(config.QueueKeys...); len(missing) > 0 {
		return SubmitResponse{}, &entity.ConfigurationError{Missing: missing}
	}
	if u.JobPublisher == nil {
		return SubmitResponse{}, &entity.ConfigurationError{Missing: config.QueueKeys}
	}

	sessionID := uuid.New().String()
	job := entity.NewJob(sessionID, caseStudyInput, quickMode)
	if err := u.Store.Create(job); err != nil {
		return SubmitResponse{}, fmt.Errorf("create job: %w", err)
	}

	msg := entity.JobMessage{
		SessionID:      sessionID,
		CaseStudyInput: caseStudyInput,
		QuickMode:      quickMode,
		Timestamp:      time.Now().UTC(),
	}
	go u.enqueue(msg)

	base := u.Cfg.PublicBaseURL
	return SubmitResponse{
		SessionID: sessionID,
		Status:    entity.StatusQueued,
		StatusURL: fmt.Sprintf("%s/api/v1/jobs/%s", base, sessionID),
		StreamURL: fmt.Sprintf("%s/api/v1/jobs/%s/stream", base, sessionID),
	}, nil
}

// enqueue is detached from the originating request on purpose.
func (u *JobUseCase) enqueue(msg entity.JobMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), u.EnqueueTimeout)
	defer cancel()

	raw, err := utils.ToRawMessage(msg)
	if err == nil {
		err = u.publishWithRetry(ctx, u.JobPublisher, raw)
	}
	if err == nil {
		u.Store.AppendLog(msg.SessionID, "job enqueued")
		return
	}

	log.Printf("enqueue failed for session %s: %v", msg.SessionID, err)
	u.Store.Apply(msg.SessionID, entity.StatusMessage{
		SessionID: msg.SessionID,
		Status:    entity.StatusFailed,
		Error:     fmt.Sprintf("enqueue failed: %v", err),
		Timestamp: time.Now().UTC(),
	})
}

func (u *JobUseCase) publishWithRetry(ctx context.Context, pub Publisher, raw json.RawMessage) error {
	var lastErr error
	for attempt := 1; attempt <= u.RetryAttempts; attempt++ {
		if err := pub.Publish(ctx, raw); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == u.RetryAttempts {
			break
		}

		backoff := u.RetryBaseDelay << (attempt - 1)
		if backoff > u.RetryMaxDelay {
			backoff = u.RetryMaxDelay
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.New("publish canceled by context")
		}
	}
	return lastErr
}

// GetStatus returns the in-memory snapshot, or reconstructs a read-only
// completed view from the artifact listing when this process no longer
// holds the session.
func (u *JobUseCase) GetStatus(ctx context.Context, sessionID string) (entity.Job, error) {
	if job, ok := u.Store.Get(sessionID); ok {
		return job, nil
	}
	if u.Artifacts == nil {
		return entity.Job{}, &entity.NotFoundError{SessionID: sessionID}
	}

	files, err := u.listWithLinks(ctx, sessionID)
	if err != nil {
		return entity.Job{}, err
	}
	if len(files) == 0 {
		return entity.Job{}, &entity.NotFoundError{SessionID: sessionID}
	}
	return entity.ReconstructedJob(sessionID, files), nil
}

// PostCommand appends the entry locally, then publishes it best-effort.
// delivered=false means accepted locally but not guaranteed delivered;
// callers must keep that distinct from full success.
func (u *JobUseCase) PostCommand(ctx context.Context, sessionID, command, source string) (bool, error) {
	if isBlank(command) {
		return false, &entity.ValidationError{Field: "command", Reason: "must not be empty"}
	}
	entry := entity.CommandEntry{
		Command:  command,
		IssuedAt: time.Now().UTC(),
		Source:   source,
	}
	if !u.Store.AppendCommand(sessionID, entry) {
		// reconstructed or unknown sessions cannot receive commands
		return false, &entity.NotFoundError{SessionID: sessionID}
	}

	if u.CmdPublisher == nil {
		return false, nil
	}
	raw, err := utils.ToRawMessage(entity.CommandMessage{
		SessionID: sessionID,
		Command:   command,
		IssuedAt:  entry.IssuedAt,
		Source:    source,
	})
	if err != nil {
		return false, nil
	}
	if err := u.CmdPublisher.Publish(ctx, raw); err != nil {
		log.Printf("command publish failed for session %s: %v", sessionID, err)
		return false, nil
	}
	return true, nil
}

// ListFiles serves the durable artifact listing with fresh links.
func (u *JobUseCase) ListFiles(ctx context.Context, sessionID string) ([]entity.ArtifactDescriptor, error) {
	if u.Artifacts == nil {
		missing := u.Cfg.Missing(config.StorageKeys...)
		if len(missing) == 0 {
			missing = config.StorageKeys
		}
		return nil, &entity.ConfigurationError{Missing: missing}
	}
	return u.listWithLinks(ctx, sessionID)
}

// listWithLinks resolves the session prefix and mints a presigned URL
// per object, lazily, at request time.
func (u *JobUseCase) listWithLinks(ctx context.Context, sessionID string) ([]entity.ArtifactDescriptor, error) {
	files, err := u.Artifacts.List(ctx, sessionID+"/")
	if err != nil {
		return nil, err
	}
	for i := range files {
		url, err := u.Artifacts.PresignedURL(ctx, sessionID+"/"+files[i].Name, u.Cfg.ArtifactURLTTL)
		if err != nil {
			return nil, err
		}
		files[i].URL = url
	}
	return files, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
