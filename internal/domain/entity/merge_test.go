package entity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runningMsg(sessionID string, progress int, agent string, done ...string) StatusMessage {
	return StatusMessage{
		SessionID:       sessionID,
		Status:          StatusRunning,
		Progress:        progress,
		CurrentAgent:    agent,
		CompletedAgents: done,
		Timestamp:       time.Now().UTC(),
	}
}

func TestApplyStatus_OverwriteFields(t *testing.T) {
	job := NewJob("s-1", "migrate a retail platform", false)

	got := ApplyStatus(job, runningMsg("s-1", 21, "architecture-design", "research", "requirements-analysis"))

	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 21, got.Progress)
	assert.Equal(t, "architecture-design", got.CurrentAgent)
	assert.Equal(t, []string{"research", "requirements-analysis"}, got.CompletedAgents)

	// identity fields survive untouched
	assert.Equal(t, "s-1", got.SessionID)
	assert.Equal(t, "migrate a retail platform", got.CaseStudyInput)
	assert.Equal(t, job.StartTime, got.StartTime)
}

func TestApplyStatus_DoesNotMutateInput(t *testing.T) {
	job := NewJob("s-1", "input", true)
	_ = ApplyStatus(job, runningMsg("s-1", 40, "x"))

	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Empty(t, job.Telemetry)
}

func TestApplyStatus_ProgressNeverRegresses(t *testing.T) {
	job := NewJob("s-1", "input", true)
	job = ApplyStatus(job, runningMsg("s-1", 60, "b"))
	job = ApplyStatus(job, runningMsg("s-1", 38, "a")) // late redelivery

	assert.Equal(t, 60, job.Progress)
}

func TestApplyStatus_FailureMayCarryLowerProgress(t *testing.T) {
	job := NewJob("s-1", "input", true)
	job = ApplyStatus(job, runningMsg("s-1", 60, "b"))
	job = ApplyStatus(job, StatusMessage{SessionID: "s-1", Status: StatusFailed, Progress: 38, Error: "boom"})

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, 38, job.Progress)
	assert.Equal(t, "boom", job.Error)
	require.NotNil(t, job.EndTime)
}

func TestApplyStatus_TerminalIsSticky(t *testing.T) {
	job := NewJob("s-1", "input", true)
	job = ApplyStatus(job, StatusMessage{SessionID: "s-1", Status: StatusCompleted, Progress: 100})

	after := ApplyStatus(job, runningMsg("s-1", 50, "requirements-analysis"))

	assert.Equal(t, StatusCompleted, after.Status)
	assert.Equal(t, 100, after.Progress)
	assert.Empty(t, after.CurrentAgent)
	// the ring still records the stray delivery
	assert.Len(t, after.Telemetry, 2)
}

func TestApplyStatus_Idempotent(t *testing.T) {
	job := NewJob("s-1", "input", false)
	msg := runningMsg("s-1", 30, "architecture-design", "research", "requirements-analysis")

	once := ApplyStatus(job, msg)
	twice := ApplyStatus(once, msg)

	once.Telemetry, twice.Telemetry = nil, nil
	assert.Equal(t, once, twice)
}

func TestApplyStatus_FilesReplacedOnlyWhenPresent(t *testing.T) {
	job := NewJob("s-1", "input", true)
	job = ApplyStatus(job, StatusMessage{
		SessionID: "s-1",
		Status:    StatusRunning,
		Progress:  40,
		Files:     []ArtifactDescriptor{{Name: "research.md"}},
	})
	require.Len(t, job.Files, 1)

	// no files field: snapshot retained
	job = ApplyStatus(job, runningMsg("s-1", 50, "b"))
	assert.Len(t, job.Files, 1)

	// files present again: replaced wholesale, not appended
	job = ApplyStatus(job, StatusMessage{
		SessionID: "s-1",
		Status:    StatusRunning,
		Progress:  60,
		Files: []ArtifactDescriptor{
			{Name: "research.md"},
			{Name: "requirements-analysis.md"},
		},
	})
	assert.Len(t, job.Files, 2)
}

func TestApplyStatus_ResultShallowMerge(t *testing.T) {
	job := NewJob("s-1", "input", true)
	job = ApplyStatus(job, StatusMessage{
		SessionID: "s-1",
		Status:    StatusRunning,
		Progress:  90,
		Result:    &Result{SummaryURL: "https://store/summary"},
	})
	job = ApplyStatus(job, StatusMessage{
		SessionID: "s-1",
		Status:    StatusCompleted,
		Progress:  100,
		Result:    &Result{ReportURL: "https://store/report", ExecutionTimeMS: 4200},
	})

	require.NotNil(t, job.Result)
	assert.Equal(t, "https://store/summary", job.Result.SummaryURL)
	assert.Equal(t, "https://store/report", job.Result.ReportURL)
	assert.Equal(t, int64(4200), job.Result.ExecutionTimeMS)
}

func TestApplyStatus_TelemetryRingBounded(t *testing.T) {
	job := NewJob("s-1", "input", true)
	for i := 0; i < TelemetryCapacity+10; i++ {
		job = ApplyStatus(job, runningMsg("s-1", i, fmt.Sprintf("agent-%d", i)))
	}

	require.Len(t, job.Telemetry, TelemetryCapacity)
	// oldest evicted: first retained entry is number 10
	assert.Equal(t, 10, job.Telemetry[0].Progress)
}

func TestReconstructedJob(t *testing.T) {
	early := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(5 * time.Minute)
	job := ReconstructedJob("s-9", []ArtifactDescriptor{
		{Name: "summary.md", Timestamp: late},
		{Name: "research.md", Timestamp: early},
	})

	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.True(t, job.Reconstructed)
	assert.Empty(t, job.Logs)
	assert.Empty(t, job.Commands)
	assert.Empty(t, job.Telemetry)
	assert.Equal(t, early, job.StartTime)
	require.NotNil(t, job.EndTime)
	assert.Equal(t, late, *job.EndTime)
}
