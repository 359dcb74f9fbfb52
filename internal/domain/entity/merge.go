package entity

import "time"

// ApplyStatus merges one status message into a job and returns the new
// value. It is pure: neither argument is mutated, so it can be exercised
// without any transport wired in.
//
// Per-field rules:
//   - sessionId, caseStudyInput, quickMode, startTime: never overwritten.
//   - status, currentAgent, completedAgents, error: taken from the message.
//   - progress: taken from the message, clamped non-decreasing unless the
//     message reports a failure. Duplicate or late redeliveries therefore
//     cannot walk progress backwards.
//   - files: replaced wholesale when the message carries a list (the
//     sender ships the authoritative snapshot), otherwise kept.
//   - result: shallow-merged field by field when present, otherwise kept.
//   - telemetry: the raw message is always appended to the bounded ring,
//     terminal or not, so redelivery stays observable.
//
// Terminal states are sticky: once completed or failed, only the
// telemetry ring moves.
func ApplyStatus(job Job, msg StatusMessage) Job {
	out := job.Clone()
	out.Telemetry = appendTelemetry(out.Telemetry, msg)

	if job.Status.IsTerminal() {
		return out
	}

	if msg.Status != "" {
		out.Status = msg.Status
	}

	p := msg.Progress
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p < out.Progress && msg.Status != StatusFailed {
		p = out.Progress
	}
	out.Progress = p

	out.CurrentAgent = msg.CurrentAgent
	out.CompletedAgents = append([]string(nil), msg.CompletedAgents...)
	if out.CompletedAgents == nil {
		out.CompletedAgents = []string{}
	}
	out.Error = msg.Error

	if msg.Files != nil {
		out.Files = append([]ArtifactDescriptor(nil), msg.Files...)
	}

	if msg.Result != nil {
		out.Result = mergeResult(out.Result, msg.Result)
	}

	if out.Status.IsTerminal() && out.EndTime == nil {
		t := time.Now().UTC()
		out.EndTime = &t
	}
	return out
}

func mergeResult(current, incoming *Result) *Result {
	merged := Result{}
	if current != nil {
		merged = *current
	}
	if incoming.SummaryURL != "" {
		merged.SummaryURL = incoming.SummaryURL
	}
	if incoming.ReportURL != "" {
		merged.ReportURL = incoming.ReportURL
	}
	if incoming.ExecutionTimeMS != 0 {
		merged.ExecutionTimeMS = incoming.ExecutionTimeMS
	}
	if incoming.WorkflowVersion != "" {
		merged.WorkflowVersion = incoming.WorkflowVersion
	}
	return &merged
}

func appendTelemetry(ring []StatusMessage, msg StatusMessage) []StatusMessage {
	ring = append(ring, msg)
	if len(ring) > TelemetryCapacity {
		ring = ring[len(ring)-TelemetryCapacity:]
	}
	return ring
}
