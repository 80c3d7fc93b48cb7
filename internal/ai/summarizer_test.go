package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xelth-com/reg44go/internal/narrative"
	"github.com/xelth-com/reg44go/internal/report"
)

type stubGenerator struct {
	out    string
	err    error
	prompt string
}

func (g *stubGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.out, g.err
}

func sample(t *testing.T) *report.ReportData {
	t.Helper()
	data := report.New("r1", "h1", "2026-03-01")
	require.NoError(t, data.SetSettingType(report.SettingChildrensHome))
	data.HomeName = "Oak House"
	return data
}

func TestSummarizeWithoutModel(t *testing.T) {
	s := NewSummarizer(nil, 0)
	data := sample(t)

	res := s.Summarize(context.Background(), data)
	assert.False(t, s.Enabled())
	assert.Equal(t, SourceTemplate, res.Source)
	assert.Equal(t, narrative.Summary(data), res.Summary)
	assert.Equal(t, narrative.ActionPlan(data), res.ActionPlan)
}

func TestSummarizePolished(t *testing.T) {
	data := sample(t)
	draft := narrative.Summary(data)
	polished := strings.ReplaceAll(draft, "No feedback from children was recorded.", "The visitor recorded no feedback from children.")
	gen := &stubGenerator{out: "```markdown\n" + polished + "\n```"}

	res := NewSummarizer(gen, time.Second).Summarize(context.Background(), data)
	assert.Equal(t, SourceGemini, res.Source)
	assert.Equal(t, strings.TrimSpace(polished), res.Summary)
	assert.Contains(t, gen.prompt, draft)
}

func TestSummarizeFallsBack(t *testing.T) {
	data := sample(t)
	draft := narrative.Summary(data)

	res := NewSummarizer(&stubGenerator{err: errors.New("quota")}, time.Second).Summarize(context.Background(), data)
	assert.Equal(t, SourceTemplate, res.Source)
	assert.Equal(t, draft, res.Summary)

	res = NewSummarizer(&stubGenerator{out: "Looks fine to me."}, time.Second).Summarize(context.Background(), data)
	assert.Equal(t, SourceTemplate, res.Source, "output without the report headings is rejected")

	res = NewSummarizer(&stubGenerator{out: "   "}, time.Second).Summarize(context.Background(), data)
	assert.Equal(t, SourceTemplate, res.Source)
}

func TestKeepsHeadingsOrder(t *testing.T) {
	draft := "# T\n\n## A\n\nx\n\n## B\n\ny\n"
	assert.True(t, keepsHeadings(draft, "## A\n\nbetter x\n\n## B\n\nbetter y"))
	assert.False(t, keepsHeadings(draft, "## B\n\ny\n\n## A\n\nx"))
	assert.False(t, keepsHeadings(draft, "## A\n\nx"))
}
