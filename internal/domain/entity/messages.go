package entity

import "time"

// JobMessage is the queue contract from the submission API to a worker.
type JobMessage struct {
	SessionID      string    `json:"sessionId"`
	CaseStudyInput string    `json:"caseStudyInput"`
	QuickMode      bool      `json:"quickMode"`
	Timestamp      time.Time `json:"timestamp"`
}

// StatusMessage is the progress event a worker publishes after every
// pipeline transition. Any field beyond sessionId and status may be
// absent; the ingestor merges what is present.
type StatusMessage struct {
	SessionID       string               `json:"sessionId"`
	Status          JobStatus            `json:"status"`
	Progress        int                  `json:"progress"`
	CurrentAgent    string               `json:"currentAgent,omitempty"`
	CompletedAgents []string             `json:"completedAgents,omitempty"`
	Result          *Result              `json:"result,omitempty"`
	Error           string               `json:"error,omitempty"`
	Files           []ArtifactDescriptor `json:"files,omitempty"`
	Timestamp       time.Time            `json:"timestamp"`
}

// CommandMessage is the best-effort advisory feedback channel into a
// running job. Workers may consume it late or not at all.
type CommandMessage struct {
	SessionID string    `json:"sessionId"`
	Command   string    `json:"command"`
	IssuedAt  time.Time `json:"issuedAt"`
	Source    string    `json:"source"`
}
