package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"crypto-flow-radar/internal/models"

	"github.com/rs/zerolog"
)

// AnalyzerConfig tunes which signals get a remote review
type AnalyzerConfig struct {
	Enabled     bool
	MinSeverity models.Severity // only signals at or above get reviewed
}

// DefaultAnalyzerConfig returns the reference tuning
func DefaultAnalyzerConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		Enabled:     false,
		MinSeverity: models.SeverityHigh,
	}
}

// Assessment is the reviewer's verdict on one signal
type Assessment struct {
	Confirmed  bool    `json:"confirmed"`
	Confidence float64 `json:"confidence"` // reviewer's own 0..100
	Reasoning  string  `json:"reasoning"`
}

// Analyzer asks the LLM to confirm or reject a locally classified
// pattern signal. Any failure falls back to confirming the local
// verdict unchanged.
type Analyzer struct {
	client *Client
	config *AnalyzerConfig
	logger zerolog.Logger
}

// NewAnalyzer creates a signal reviewer
func NewAnalyzer(client *Client, config *AnalyzerConfig, logger zerolog.Logger) *Analyzer {
	if config == nil {
		config = DefaultAnalyzerConfig()
	}
	return &Analyzer{
		client: client,
		config: config,
		logger: logger.With().Str("component", "llm_analyzer").Logger(),
	}
}

// ShouldReview reports whether a signal qualifies for a remote review
func (a *Analyzer) ShouldReview(signal models.PatternSignal) bool {
	if !a.config.Enabled || a.client == nil || !a.client.IsConfigured() {
		return false
	}
	return severityRank(signal.Severity) >= severityRank(a.config.MinSeverity)
}

// Review sends the signal and its recent liquidation history for a
// second opinion. On any error the signal is confirmed as-is so the
// remote reviewer can never mute the engine.
func (a *Analyzer) Review(ctx context.Context, signal models.PatternSignal, history []models.UnifiedAsset) Assessment {
	fallback := Assessment{Confirmed: true, Confidence: signal.Confidence, Reasoning: "local classifier verdict"}

	raw, err := a.client.Complete(ctx, systemPrompt, buildReviewPrompt(signal, history))
	if err != nil {
		a.logger.Warn().Err(err).Str("signal_id", signal.ID).Msg("signal review failed, keeping local verdict")
		return fallback
	}

	assessment, err := parseAssessment(raw)
	if err != nil {
		a.logger.Warn().Err(err).Str("signal_id", signal.ID).Msg("unparseable review, keeping local verdict")
		return fallback
	}

	a.logger.Info().
		Str("signal_id", signal.ID).
		Bool("confirmed", assessment.Confirmed).
		Float64("confidence", assessment.Confidence).
		Msg("signal reviewed")
	return assessment
}

const systemPrompt = `You are a crypto derivatives analyst reviewing automated liquidation pattern signals.
Given a signal and the recent per-asset liquidation history, decide whether the signal is credible.
Respond with ONLY a JSON object: {"confirmed": bool, "confidence": number 0-100, "reasoning": "one sentence"}.`

func buildReviewPrompt(signal models.PatternSignal, history []models.UnifiedAsset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signal: %s on %s, severity %s, local confidence %.0f\n",
		signal.PatternType, signal.Asset, signal.Severity, signal.Confidence)
	fmt.Fprintf(&b, "Description: %s\n", signal.Description)
	fmt.Fprintf(&b, "Current metrics: long=$%.0f short=$%.0f dominant=%s ratio=%.2f intensity=%d\n",
		signal.Metrics.LongVolume, signal.Metrics.ShortVolume, signal.Metrics.DominantSide,
		signal.Metrics.VolumeRatio, signal.Metrics.Intensity)

	b.WriteString("Recent snapshots (oldest first):\n")
	for _, u := range history {
		fmt.Fprintf(&b, "  long=$%.0f short=$%.0f positions=%d\n",
			u.LongLiquidated, u.ShortLiquidated, u.TotalPositions)
	}
	return b.String()
}

// parseAssessment extracts the JSON verdict, tolerating surrounding prose
func parseAssessment(raw string) (Assessment, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Assessment{}, fmt.Errorf("no JSON object in response")
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(raw[start:end+1]), &assessment); err != nil {
		return Assessment{}, fmt.Errorf("failed to parse assessment: %w", err)
	}
	if assessment.Confidence < 0 || assessment.Confidence > 100 {
		return Assessment{}, fmt.Errorf("confidence %f out of range", assessment.Confidence)
	}
	return assessment, nil
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityLow:
		return 0
	case models.SeverityMedium:
		return 1
	case models.SeverityHigh:
		return 2
	case models.SeverityExtreme:
		return 3
	default:
		return 0
	}
}
