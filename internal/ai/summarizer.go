// Package ai optionally polishes the generated visit narrative with a
// language model. The deterministic narrative is always the fallback.
package ai

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/reg44go/internal/narrative"
	"github.com/xelth-com/reg44go/internal/report"
	"github.com/xelth-com/reg44go/internal/utils"
)

// Sources of a summary
const (
	SourceTemplate = "template"
	SourceGemini   = "gemini"
)

// Generator produces text from a prompt
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Result is a generated summary
type Result struct {
	Summary    string `json:"summary"`
	ActionPlan string `json:"actionPlan"`
	Source     string `json:"source"`
}

// Summarizer builds report summaries
type Summarizer struct {
	gen     Generator
	timeout time.Duration
}

// NewSummarizer creates a summarizer. A nil generator gives template-only output.
func NewSummarizer(gen Generator, timeout time.Duration) *Summarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Summarizer{gen: gen, timeout: timeout}
}

// Enabled reports whether a model is configured
func (s *Summarizer) Enabled() bool {
	return s.gen != nil
}

// Summarize returns the narrative and action plan for a report. Model
// failures are logged and the deterministic text is returned instead.
func (s *Summarizer) Summarize(ctx context.Context, data *report.ReportData) Result {
	res := Result{
		Summary:    narrative.Summary(data),
		ActionPlan: narrative.ActionPlan(data),
		Source:     SourceTemplate,
	}
	if s.gen == nil {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.gen.GenerateContent(ctx, summaryRequest+res.Summary)
	if err != nil {
		zap.L().Warn("⚠️ AI summary failed, using template", zap.String("report", data.ReportID), zap.Error(err))
		return res
	}

	polished := utils.SanitizeMarkdown(out)
	if !keepsHeadings(res.Summary, polished) {
		zap.L().Warn("⚠️ AI summary dropped headings, using template", zap.String("report", data.ReportID))
		return res
	}

	zap.L().Debug("🤖 AI summary generated",
		zap.String("report", data.ReportID),
		zap.Duration("took", time.Since(start)),
	)
	res.Summary = polished
	res.Source = SourceGemini
	return res
}

// keepsHeadings checks that every second-level heading of the draft
// survives in order
func keepsHeadings(draft, polished string) bool {
	if strings.TrimSpace(polished) == "" {
		return false
	}
	rest := polished
	for _, line := range strings.Split(draft, "\n") {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		i := strings.Index(rest, line)
		if i < 0 {
			return false
		}
		rest = rest[i+len(line):]
	}
	return true
}
