package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoLLM struct {
	lastPrompt string
}

func (e *echoLLM) Generate(_ context.Context, prompt string) (string, error) {
	e.lastPrompt = prompt
	return "section text", nil
}

func TestPlanShapes(t *testing.T) {
	full := Plan(false)
	quick := Plan(true)

	assert.Len(t, full, 9)
	assert.Len(t, quick, 3)

	// dependency order: requirements before architecture, assessments
	// after architecture, recommendations last
	assert.Equal(t, AgentResearch, full[0])
	assert.Equal(t, AgentRequirements, full[1])
	assert.Equal(t, AgentArchitecture, full[2])
	assert.Equal(t, AgentRecommendations, full[len(full)-1])
	assert.Equal(t, []string{AgentRequirements, AgentArchitecture, AgentRecommendations}, quick)
}

func TestPlanReturnsCopy(t *testing.T) {
	p := Plan(true)
	p[0] = "tampered"
	assert.Equal(t, AgentRequirements, Plan(true)[0])
}

func TestRunBuildsPromptFromContext(t *testing.T) {
	llm := &echoLLM{}
	r := NewRunner(llm)

	out, err := r.Run(context.Background(), AgentArchitecture, "a retail case",
		[]Section{{Agent: AgentRequirements, Text: "the requirements"}},
		[]string{"prefer serverless"})
	require.NoError(t, err)
	assert.Equal(t, "section text", out)

	assert.Contains(t, llm.lastPrompt, "architecture-design")
	assert.Contains(t, llm.lastPrompt, "a retail case")
	assert.Contains(t, llm.lastPrompt, "the requirements")
	assert.Contains(t, llm.lastPrompt, "prefer serverless")
}

func TestRunRejectsUnknownAgent(t *testing.T) {
	r := NewRunner(&echoLLM{})
	_, err := r.Run(context.Background(), "no-such-agent", "input", nil, nil)
	assert.Error(t, err)
}
