package llm

import (
	"testing"

	"crypto-flow-radar/internal/models"

	"github.com/rs/zerolog"
)

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// TestParseAssessmentToleratesProse verifies the JSON verdict is found
// even when the model wraps it in text
func TestParseAssessmentToleratesProse(t *testing.T) {
	raw := "Here is my analysis:\n{\"confirmed\": true, \"confidence\": 82, \"reasoning\": \"cascade is real\"}\nHope that helps."

	a, err := parseAssessment(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !a.Confirmed || a.Confidence != 82 {
		t.Errorf("unexpected assessment: %+v", a)
	}
}

// TestParseAssessmentRejectsGarbage verifies malformed responses error
func TestParseAssessmentRejectsGarbage(t *testing.T) {
	cases := []string{
		"no json here",
		"{\"confirmed\": true, \"confidence\": 500}",
		"{broken",
	}
	for i, raw := range cases {
		if _, err := parseAssessment(raw); err == nil {
			t.Errorf("case %d should fail to parse", i)
		}
	}
}

// TestShouldReviewGating verifies severity and configuration gates
func TestShouldReviewGating(t *testing.T) {
	client := NewClient(&ClientConfig{Provider: ProviderClaude, APIKey: "test-key"})
	a := NewAnalyzer(client, &AnalyzerConfig{Enabled: true, MinSeverity: models.SeverityHigh}, nopLogger())

	if a.ShouldReview(models.PatternSignal{Severity: models.SeverityMedium}) {
		t.Error("signals below the severity floor should not be reviewed")
	}
	if !a.ShouldReview(models.PatternSignal{Severity: models.SeverityExtreme}) {
		t.Error("extreme signals should be reviewed")
	}

	disabled := NewAnalyzer(client, &AnalyzerConfig{Enabled: false, MinSeverity: models.SeverityLow}, nopLogger())
	if disabled.ShouldReview(models.PatternSignal{Severity: models.SeverityExtreme}) {
		t.Error("a disabled analyzer should never review")
	}

	unconfigured := NewAnalyzer(NewClient(nil), &AnalyzerConfig{Enabled: true, MinSeverity: models.SeverityLow}, nopLogger())
	if unconfigured.ShouldReview(models.PatternSignal{Severity: models.SeverityExtreme}) {
		t.Error("a client without an API key should never review")
	}
}
