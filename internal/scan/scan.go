// Package scan runs one design audit from submission to committed issues.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/auditwise/internal/ai"
	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/parser"
)

// Timing defaults for the progress animation and the hand-off.
const (
	DefaultDuration     = 6 * time.Second
	DefaultTick         = 80 * time.Millisecond
	DefaultHandOffDelay = 700 * time.Millisecond

	// MaxAnimatedPercent is where the animation stops until real work ends.
	MaxAnimatedPercent = 90.0
)

// Phases are the labels shown while a scan runs.
var Phases = []string{
	"Parsing design structure…",
	"Analysing spacing system…",
	"Checking color contrast…",
	"Evaluating typography hierarchy…",
	"Scanning layout alignment…",
	"Running accessibility checks…",
	"Detecting component inconsistencies…",
	"Generating AI issue explanations…",
	"Calculating AI design score…",
	"Preparing audit report…",
}

// AIPhase is the label index shown while the AI call is in flight.
const AIPhase = 7

// Status messages.
const (
	StatusFetchingFigma = "Fetching Figma design…"
	StatusDone          = "Opening your results…"
)

// AssetResolver acquires the design payload for a submission.
type AssetResolver interface {
	Resolve(ctx context.Context, in models.DesignInput) asset.Resolution
}

// Result is the output of the scan pipeline.
type Result struct {
	Issues      []models.Issue
	DesignImage string
	UsedAI      bool
	Fallback    bool
}

// Scanner holds the collaborators and timings shared by all runs.
type Scanner struct {
	Resolver     AssetResolver
	Caller       ai.Caller
	Duration     time.Duration
	Tick         time.Duration
	HandOffDelay time.Duration
	Logger       *slog.Logger
}

// NewScanner creates a Scanner with default timings.
func NewScanner(resolver AssetResolver, caller ai.Caller) *Scanner {
	return &Scanner{
		Resolver:     resolver,
		Caller:       caller,
		Duration:     DefaultDuration,
		Tick:         DefaultTick,
		HandOffDelay: DefaultHandOffDelay,
		Logger:       slog.Default(),
	}
}

// hooks receives pipeline progress.
type hooks interface {
	setState(State)
	setStatus(string)
	setPhase(int)
}

type noHooks struct{}

func (noHooks) setState(State)   {}
func (noHooks) setStatus(string) {}
func (noHooks) setPhase(int)     {}

// Execute runs the pipeline synchronously without progress reporting. It
// never fails: every error path yields the fallback issue set.
func (s *Scanner) Execute(ctx context.Context, in models.DesignInput) Result {
	return s.execute(ctx, in, noHooks{})
}

func (s *Scanner) execute(ctx context.Context, in models.DesignInput, h hooks) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Warn("scan unexpected error", "error", fmt.Sprint(r))
			res = Result{Issues: parser.Fallback(), DesignImage: res.DesignImage, Fallback: true}
		}
	}()

	h.setState(StateResolvingAsset)
	if in.Type == models.DesignTypeFigma && in.URL != "" && in.FigmaToken != "" {
		h.setStatus(StatusFetchingFigma)
	}

	var resolution asset.Resolution
	if s.Resolver != nil {
		resolution = s.Resolver.Resolve(ctx, in)
	}
	// PDF payloads are analysed but have no preview.
	if resolution.Image.IsVisual() {
		res.DesignImage = resolution.Image.DataURL()
	}

	if in.APIKey == "" || s.Caller == nil {
		res.Issues = parser.Fallback()
		res.Fallback = true
		return res
	}

	h.setState(StateCallingAI)
	h.setPhase(AIPhase)

	var build ai.RequestBuilder
	switch {
	case resolution.Image.IsVisual():
		build = ai.VisionRequest(resolution.Image.MIMEType, resolution.Image.Base64(), ai.AnalysisPrompt)
	case resolution.ContextURL != "":
		build = ai.TextRequest(ai.URLPrompt(resolution.ContextURL))
	default:
		build = ai.TextRequest(ai.AnalysisPrompt)
	}

	text, ok, err := s.Caller.Generate(ctx, in.APIKey, build, h.setStatus)
	if err != nil {
		s.logger().Warn("AI call failed", "error", err)
		res.Issues = parser.Fallback()
		res.Fallback = true
		return res
	}
	if !ok {
		s.logger().Warn("all models failed")
		res.Issues = parser.Fallback()
		res.Fallback = true
		return res
	}

	h.setState(StateParsing)
	res.Issues = parser.Parse(text)
	res.UsedAI = true
	return res
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Percent returns the animated progress after tick ticks.
func Percent(tick int, duration, interval time.Duration) float64 {
	steps := float64(duration) / float64(interval)
	if steps <= 0 {
		return MaxAnimatedPercent
	}
	return min(float64(tick)/steps*MaxAnimatedPercent, MaxAnimatedPercent)
}

// PhaseIndex returns the label index for an animated percentage. The last
// label is reserved for completion.
func PhaseIndex(percent float64) int {
	last := len(Phases) - 2
	return min(int(percent/MaxAnimatedPercent*float64(last)), last)
}
