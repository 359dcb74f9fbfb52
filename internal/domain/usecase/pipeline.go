package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"casecruncher/internal/agents"
	"casecruncher/internal/domain/entity"
	"casecruncher/pkg/utils"
)

// WorkflowVersion is stamped into every report manifest.
const WorkflowVersion = "v1.0"

type AgentRunner interface {
	Run(ctx context.Context, agent, caseStudyInput string, prior []agents.Section, feedback []string) (string, error)
}

type ArtifactWriter interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type FeedbackSource interface {
	Drain(sessionID string) []string
}

// PipelineUseCase executes one job message end to end: run the agent
// plan in order, upload one artifact per agent, publish a status after
// every transition, and finish with the aggregate summary and manifest.
// Delivery is at-least-once, so every write is an overwrite and every
// status is safe to process twice.
type PipelineUseCase struct {
	Artifacts ArtifactWriter
	Status    Publisher
	Agents    AgentRunner
	Feedback  FeedbackSource
	URLTTL    time.Duration
}

func NewPipelineUseCase(artifacts ArtifactWriter, status Publisher, runner AgentRunner, feedback FeedbackSource, urlTTL time.Duration) *PipelineUseCase {
	return &PipelineUseCase{
		Artifacts: artifacts,
		Status:    status,
		Agents:    runner,
		Feedback:  feedback,
		URLTTL:    urlTTL,
	}
}

// HandleJob is the job-queue consumer entry point. Returning an error
// dead-letters the delivery; the broker policy owns retries from there.
func (u *PipelineUseCase) HandleJob(ctx context.Context, body []byte) error {
	var msg entity.JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal job message: %w", err)
	}
	if msg.SessionID == "" {
		return fmt.Errorf("job message without sessionId")
	}
	return u.Execute(ctx, msg)
}

func (u *PipelineUseCase) Execute(ctx context.Context, msg entity.JobMessage) error {
	started := time.Now()
	plan := agents.Plan(msg.QuickMode)
	n := len(plan)
	log.Printf("session %s: starting %d-step pipeline (quick=%v)", msg.SessionID, n, msg.QuickMode)

	var sections []agents.Section
	for i, agent := range plan {
		u.publishRunning(ctx, msg.SessionID, agent, plan[:i], progressFor(i, n))

		var feedback []string
		if u.Feedback != nil {
			feedback = u.Feedback.Drain(msg.SessionID)
		}

		out, err := u.Agents.Run(ctx, agent, msg.CaseStudyInput, sections, feedback)
		if err != nil {
			stepErr := &entity.PipelineStepError{Step: agent, Err: err}
			u.publishFailed(ctx, msg.SessionID, plan[:i], progressFor(i, n), stepErr)
			return stepErr
		}

		key := msg.SessionID + "/" + agent + ".md"
		if err := u.Artifacts.Upload(ctx, key, []byte(out), "text/markdown"); err != nil {
			u.publishFailed(ctx, msg.SessionID, plan[:i], progressFor(i, n), err)
			return err
		}

		sections = append(sections, agents.Section{Agent: agent, Text: out})
		u.publishRunning(ctx, msg.SessionID, agent, plan[:i+1], progressFor(i+1, n))
	}

	return u.finalize(ctx, msg, plan, sections, started)
}

// finalize synthesizes summary.md and full-report.json and publishes the
// terminal completed status carrying the result links.
func (u *PipelineUseCase) finalize(ctx context.Context, msg entity.JobMessage, plan []string, sections []agents.Section, started time.Time) error {
	now := time.Now().UTC()
	files := make([]entity.ArtifactDescriptor, 0, len(plan)+2)
	for _, s := range sections {
		key := msg.SessionID + "/" + s.Agent + ".md"
		url, err := u.Artifacts.PresignedURL(ctx, key, u.URLTTL)
		if err != nil {
			return err
		}
		files = append(files, entity.ArtifactDescriptor{
			Name:        s.Agent + ".md",
			URL:         url,
			ContentType: "text/markdown",
			Size:        int64(len(s.Text)),
			Timestamp:   now,
		})
	}

	summary := renderSummary(msg, files)
	summaryKey := msg.SessionID + "/summary.md"
	if err := u.Artifacts.Upload(ctx, summaryKey, []byte(summary), "text/markdown"); err != nil {
		return err
	}
	summaryURL, err := u.Artifacts.PresignedURL(ctx, summaryKey, u.URLTTL)
	if err != nil {
		return err
	}
	files = append(files, entity.ArtifactDescriptor{
		Name:        "summary.md",
		URL:         summaryURL,
		ContentType: "text/markdown",
		Size:        int64(len(summary)),
		Timestamp:   now,
	})

	result := &entity.Result{
		SummaryURL:      summaryURL,
		ExecutionTimeMS: time.Since(started).Milliseconds(),
		WorkflowVersion: WorkflowVersion,
	}

	report, err := json.MarshalIndent(map[string]interface{}{
		"sessionId":       msg.SessionID,
		"quickMode":       msg.QuickMode,
		"workflowVersion": WorkflowVersion,
		"generatedAt":     now,
		"executionTimeMs": result.ExecutionTimeMS,
		"artifacts":       files,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	reportKey := msg.SessionID + "/full-report.json"
	if err := u.Artifacts.Upload(ctx, reportKey, report, "application/json"); err != nil {
		return err
	}
	reportURL, err := u.Artifacts.PresignedURL(ctx, reportKey, u.URLTTL)
	if err != nil {
		return err
	}
	files = append(files, entity.ArtifactDescriptor{
		Name:        "full-report.json",
		URL:         reportURL,
		ContentType: "application/json",
		Size:        int64(len(report)),
		Timestamp:   now,
	})
	result.ReportURL = reportURL

	return u.publish(ctx, entity.StatusMessage{
		SessionID:       msg.SessionID,
		Status:          entity.StatusCompleted,
		Progress:        100,
		CompletedAgents: plan,
		Result:          result,
		Files:           files,
		Timestamp:       time.Now().UTC(),
	})
}

// progress reserves margin at both ends for setup and finalization.
func progressFor(i, n int) int {
	return int(math.Round(float64(i)/float64(n)*85)) + 10
}

func (u *PipelineUseCase) publishRunning(ctx context.Context, sessionID, agent string, completed []string, progress int) {
	err := u.publish(ctx, entity.StatusMessage{
		SessionID:       sessionID,
		Status:          entity.StatusRunning,
		Progress:        progress,
		CurrentAgent:    agent,
		CompletedAgents: completed,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		// progress updates are best effort; the next one supersedes this
		log.Printf("session %s: status publish failed: %v", sessionID, err)
	}
}

func (u *PipelineUseCase) publishFailed(ctx context.Context, sessionID string, completed []string, progress int, cause error) {
	err := u.publish(ctx, entity.StatusMessage{
		SessionID:       sessionID,
		Status:          entity.StatusFailed,
		Progress:        progress,
		CompletedAgents: completed,
		Error:           cause.Error(),
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		log.Printf("session %s: failed-status publish failed: %v", sessionID, err)
	}
}

func (u *PipelineUseCase) publish(ctx context.Context, msg entity.StatusMessage) error {
	raw, err := utils.ToRawMessage(msg)
	if err != nil {
		return err
	}
	return u.Status.Publish(ctx, raw)
}

func renderSummary(msg entity.JobMessage, files []entity.ArtifactDescriptor) string {
	out := "# Case Study Analysis\n\n"
	out += fmt.Sprintf("Session: %s\n\n## Brief\n\n%s\n\n## Artifacts\n\n", msg.SessionID, msg.CaseStudyInput)
	for _, f := range files {
		out += fmt.Sprintf("- [%s](%s)\n", f.Name, f.URL)
	}
	return out
}
