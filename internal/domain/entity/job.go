package entity

import "time"

type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// TelemetryCapacity bounds the per-job telemetry ring buffer.
const TelemetryCapacity = 50

// IsTerminal reports whether a status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ArtifactDescriptor points at one durable pipeline output. URL is a
// time-bounded read-only link, minted lazily per request.
type ArtifactDescriptor struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Timestamp   time.Time `json:"timestamp"`
}

// CommandEntry records one piece of operator feedback issued against a
// running session. Local bookkeeping only, never reconstructed.
type CommandEntry struct {
	Command  string    `json:"command"`
	IssuedAt time.Time `json:"issuedAt"`
	Source   string    `json:"source"`
}

// Result carries the links and metrics of a finished pipeline. Status
// messages may ship it partially; merging is shallow, field by field.
type Result struct {
	SummaryURL      string `json:"summaryUrl,omitempty"`
	ReportURL       string `json:"reportUrl,omitempty"`
	ExecutionTimeMS int64  `json:"totalExecutionTimeMs,omitempty"`
	WorkflowVersion string `json:"workflowVersion,omitempty"`
}

// Job is the per-session state record. The status ingestor is the only
// writer while a session is live; API handlers read copied snapshots.
type Job struct {
	SessionID       string               `json:"sessionId"`
	CaseStudyInput  string               `json:"caseStudyInput"`
	QuickMode       bool                 `json:"quickMode"`
	Status          JobStatus            `json:"status"`
	Progress        int                  `json:"progress"`
	CurrentAgent    string               `json:"currentAgent,omitempty"`
	CompletedAgents []string             `json:"completedAgents"`
	Files           []ArtifactDescriptor `json:"files,omitempty"`
	Logs            []string             `json:"logs,omitempty"`
	Error           string               `json:"error,omitempty"`
	Result          *Result              `json:"result,omitempty"`
	Commands        []CommandEntry       `json:"commands,omitempty"`
	Telemetry       []StatusMessage      `json:"-"`
	Reconstructed   bool                 `json:"reconstructed,omitempty"`
	StartTime       time.Time            `json:"startTime"`
	EndTime         *time.Time           `json:"endTime,omitempty"`
}

// NewJob creates the queued record handed back to the submitter.
func NewJob(sessionID, caseStudyInput string, quickMode bool) Job {
	return Job{
		SessionID:       sessionID,
		CaseStudyInput:  caseStudyInput,
		QuickMode:       quickMode,
		Status:          StatusQueued,
		Progress:        0,
		CompletedAgents: []string{},
		StartTime:       time.Now().UTC(),
	}
}

// ReconstructedJob synthesizes a read-only view from a durable artifact
// listing after in-memory state was lost. A non-empty listing is taken as
// proof of completion; the listing cannot tell a mid-pipeline crash from
// success, so a partial run also reports completed here.
func ReconstructedJob(sessionID string, files []ArtifactDescriptor) Job {
	job := Job{
		SessionID:       sessionID,
		Status:          StatusCompleted,
		Progress:        100,
		CompletedAgents: []string{},
		Files:           files,
		Reconstructed:   true,
	}
	for _, f := range files {
		if job.StartTime.IsZero() || f.Timestamp.Before(job.StartTime) {
			job.StartTime = f.Timestamp
		}
		if job.EndTime == nil || f.Timestamp.After(*job.EndTime) {
			ts := f.Timestamp
			job.EndTime = &ts
		}
	}
	return job
}

// Clone returns a deep copy safe to hand across goroutine boundaries.
func (j Job) Clone() Job {
	out := j
	if j.CompletedAgents != nil {
		out.CompletedAgents = append([]string{}, j.CompletedAgents...)
	}
	out.Files = append([]ArtifactDescriptor(nil), j.Files...)
	out.Logs = append([]string(nil), j.Logs...)
	out.Commands = append([]CommandEntry(nil), j.Commands...)
	out.Telemetry = append([]StatusMessage(nil), j.Telemetry...)
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	if j.EndTime != nil {
		t := *j.EndTime
		out.EndTime = &t
	}
	return out
}
