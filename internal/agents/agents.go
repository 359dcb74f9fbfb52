// Package agents defines the ordered analysis pipeline and runs each
// named agent against an OpenAI-compatible completion endpoint.
package agents

import (
	"context"
	"fmt"
	"strings"
)

// Agent names, in dependency order. Research feeds requirements,
// architecture depends on requirements, the assessments depend on
// architecture, and cost/risk follow the assessments.
const (
	AgentResearch        = "research"
	AgentRequirements    = "requirements-analysis"
	AgentArchitecture    = "architecture-design"
	AgentSecurity        = "security-assessment"
	AgentPerformance     = "performance-assessment"
	AgentOperations      = "operations-assessment"
	AgentCost            = "cost-analysis"
	AgentRisk            = "risk-analysis"
	AgentRecommendations = "recommendations"
)

var fullPlan = []string{
	AgentResearch,
	AgentRequirements,
	AgentArchitecture,
	AgentSecurity,
	AgentPerformance,
	AgentOperations,
	AgentCost,
	AgentRisk,
	AgentRecommendations,
}

var quickPlan = []string{
	AgentRequirements,
	AgentArchitecture,
	AgentRecommendations,
}

// Plan returns the ordered agent list for the requested mode.
func Plan(quickMode bool) []string {
	if quickMode {
		return append([]string(nil), quickPlan...)
	}
	return append([]string(nil), fullPlan...)
}

var roles = map[string]string{
	AgentResearch:        "Research the business and technology context of the case study. Surface industry constraints, comparable reference architectures and regulatory considerations.",
	AgentRequirements:    "Extract and prioritize the functional and non-functional requirements. Make implicit constraints explicit.",
	AgentArchitecture:    "Design a target architecture that satisfies the requirements. Name concrete components and the data flows between them.",
	AgentSecurity:        "Assess the proposed architecture for security weaknesses: trust boundaries, data protection, identity and network exposure.",
	AgentPerformance:     "Assess the proposed architecture for performance and scalability: bottlenecks, capacity limits, latency-critical paths.",
	AgentOperations:      "Assess the proposed architecture for operability: deployment, monitoring, failure handling and day-2 concerns.",
	AgentCost:            "Estimate the cost profile of the proposed architecture and identify the dominant cost drivers and saving options.",
	AgentRisk:            "Identify delivery and operational risks of the proposal, with likelihood, impact and mitigations.",
	AgentRecommendations: "Write the final recommendations: the decision summary, trade-offs accepted, and immediate next steps.",
}

// TextGenerator is the completion backend. The pipeline treats each
// agent call as opaque: text out, or an error.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Runner turns one agent invocation into a prompt over the accumulated
// context and returns the agent's markdown section.
type Runner struct {
	LLM TextGenerator
}

func NewRunner(llm TextGenerator) *Runner {
	return &Runner{LLM: llm}
}

// Run executes one named agent. Prior sections arrive in pipeline order;
// feedback holds any operator commands received since the last step.
func (r *Runner) Run(ctx context.Context, agent, caseStudyInput string, prior []Section, feedback []string) (string, error) {
	role, ok := roles[agent]
	if !ok {
		return "", fmt.Errorf("unknown agent %q", agent)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s agent in a case-study analysis pipeline.\n\n", agent)
	b.WriteString(role)
	b.WriteString("\n\n## Case study\n\n")
	b.WriteString(caseStudyInput)
	for _, s := range prior {
		fmt.Fprintf(&b, "\n\n## Prior output: %s\n\n%s", s.Agent, s.Text)
	}
	if len(feedback) > 0 {
		b.WriteString("\n\n## Operator feedback\n")
		for _, f := range feedback {
			fmt.Fprintf(&b, "\n- %s", f)
		}
	}
	b.WriteString("\n\nRespond in markdown.")

	out, err := r.LLM.Generate(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", agent, err)
	}
	return out, nil
}

// Section is one finished agent output carried forward as context.
type Section struct {
	Agent string
	Text  string
}
