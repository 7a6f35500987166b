package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/auditwise/internal/ai"
	"github.com/joescharf/auditwise/internal/asset"
	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/parser"
)

const twoIssues = "```json\n[{\"title\":\"A\",\"severity\":\"High\"},{\"title\":\"B\"}]\n```"

type fakeCaller struct {
	mu      sync.Mutex
	text    string
	ok      bool
	err     error
	block   chan struct{}
	calls   int
	lastReq ai.GenerateRequest
}

func (f *fakeCaller) Generate(ctx context.Context, apiKey string, build ai.RequestBuilder, onStatus ai.StatusFunc) (string, bool, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = build("m")
	f.mu.Unlock()
	if onStatus != nil {
		onStatus("Running AI analysis…")
	}
	if f.block != nil {
		<-f.block
	}
	return f.text, f.ok, f.err
}

type fakeResolver struct {
	res   asset.Resolution
	panic bool
}

func (f fakeResolver) Resolve(context.Context, models.DesignInput) asset.Resolution {
	if f.panic {
		panic("resolver exploded")
	}
	return f.res
}

type sink struct {
	mu     sync.Mutex
	calls  int
	image  string
	issues []models.Issue
}

func (s *sink) Commit(designImage string, issues []models.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.image = designImage
	s.issues = issues
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastScanner(r AssetResolver, c ai.Caller) *Scanner {
	s := NewScanner(r, c)
	s.Duration = 20 * time.Millisecond
	s.Tick = time.Millisecond
	s.HandOffDelay = time.Millisecond
	return s
}

var pngImage = &asset.Image{MIMEType: "image/png", Data: []byte("png")}

func TestExecute_NoAPIKey(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true}
	s := fastScanner(fakeResolver{res: asset.Resolution{Image: pngImage}}, c)

	res := s.Execute(context.Background(), models.DesignInput{Type: models.DesignTypePNG})
	assert.Equal(t, parser.Fallback(), res.Issues)
	assert.True(t, res.Fallback)
	assert.Equal(t, pngImage.DataURL(), res.DesignImage)
	assert.Zero(t, c.calls)
}

func TestExecute_Vision(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true}
	s := fastScanner(fakeResolver{res: asset.Resolution{Image: pngImage}}, c)

	res := s.Execute(context.Background(), models.DesignInput{Type: models.DesignTypePNG, APIKey: "k"})
	require.Len(t, res.Issues, 2)
	assert.Equal(t, "A", res.Issues[0].Title)
	assert.True(t, res.UsedAI)

	parts := c.lastReq.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.Equal(t, pngImage.Base64(), parts[0].InlineData.Data)
	assert.Equal(t, ai.AnalysisPrompt, parts[1].Text)
}

func TestExecute_PDFGoesTextOnly(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true}
	pdf := &asset.Image{MIMEType: "application/pdf", Data: []byte("%PDF")}
	s := fastScanner(fakeResolver{res: asset.Resolution{Image: pdf}}, c)

	res := s.Execute(context.Background(), models.DesignInput{Type: models.DesignTypePDF, APIKey: "k"})
	assert.Len(t, res.Issues, 2)
	assert.Empty(t, res.DesignImage)

	parts := c.lastReq.Contents[0].Parts
	require.Len(t, parts, 1)
	assert.Nil(t, parts[0].InlineData)
	assert.Equal(t, ai.AnalysisPrompt, parts[0].Text)
}

func TestExecute_URL(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true}
	s := fastScanner(fakeResolver{res: asset.Resolution{ContextURL: "https://example.com"}}, c)

	s.Execute(context.Background(), models.DesignInput{Type: models.DesignTypeURL, URL: "https://example.com", APIKey: "k"})
	assert.Equal(t, ai.URLPrompt("https://example.com"), c.lastReq.Contents[0].Parts[0].Text)
}

func TestExecute_FallbackPaths(t *testing.T) {
	tests := []struct {
		name     string
		caller   *fakeCaller
		resolver fakeResolver
	}{
		{"fatal status", &fakeCaller{err: &ai.StatusError{Model: "m", StatusCode: 400}}, fakeResolver{}},
		{"all models failed", &fakeCaller{}, fakeResolver{}},
		{"unparseable text", &fakeCaller{text: "no issues here", ok: true}, fakeResolver{}},
		{"resolver panic", &fakeCaller{text: twoIssues, ok: true}, fakeResolver{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fastScanner(tt.resolver, tt.caller)
			res := s.Execute(context.Background(), models.DesignInput{Type: models.DesignTypeURL, URL: "http://x", APIKey: "k"})
			assert.Equal(t, parser.Fallback(), res.Issues)
		})
	}
}

func TestRun_Completes(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true}
	s := fastScanner(fakeResolver{res: asset.Resolution{Image: pngImage}}, c)

	var mu sync.Mutex
	var seen []Snapshot
	run := s.NewRun(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})
	assert.Equal(t, StateIdle, run.Snapshot().State)

	out := &sink{}
	handedOff := make(chan struct{})
	require.NoError(t, run.Start(context.Background(), models.DesignInput{Type: models.DesignTypePNG, APIKey: "k"}, out, func() { close(handedOff) }))

	select {
	case <-handedOff:
	case <-time.After(5 * time.Second):
		t.Fatal("hand-off never happened")
	}
	<-run.Done()

	snap := run.Snapshot()
	assert.Equal(t, StateComplete, snap.State)
	assert.Equal(t, 100.0, snap.Percent)
	assert.Equal(t, Phases[len(Phases)-1], snap.Phase)
	assert.True(t, snap.Done)
	assert.True(t, snap.HandedOff)
	assert.Equal(t, StatusDone, snap.Message())

	assert.Equal(t, 1, out.count())
	assert.Len(t, out.issues, 2)
	assert.Equal(t, pngImage.DataURL(), out.image)

	mu.Lock()
	defer mu.Unlock()
	var sawAI bool
	for _, sn := range seen {
		if sn.State == StateCallingAI && sn.PhaseIndex >= AIPhase {
			sawAI = true
		}
		assert.LessOrEqual(t, sn.Percent, 100.0)
	}
	assert.True(t, sawAI, "AI phase was published")
}

func TestRun_StartOnce(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true}
	s := fastScanner(fakeResolver{}, c)
	run := s.NewRun(nil)

	require.NoError(t, run.Start(context.Background(), models.DesignInput{Type: models.DesignTypeURL}, &sink{}, nil))
	assert.ErrorIs(t, run.Start(context.Background(), models.DesignInput{Type: models.DesignTypeURL}, &sink{}, nil), ErrAlreadyStarted)
	<-run.Done()
	assert.ErrorIs(t, run.Start(context.Background(), models.DesignInput{Type: models.DesignTypeURL}, &sink{}, nil), ErrAlreadyStarted)
}

func TestRun_CancelDiscardsResult(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true, block: make(chan struct{})}
	s := fastScanner(fakeResolver{}, c)
	run := s.NewRun(nil)
	out := &sink{}

	ctx, cancel := context.WithCancel(context.Background())
	var handedOff atomic.Bool
	require.NoError(t, run.Start(ctx, models.DesignInput{Type: models.DesignTypeURL, URL: "http://x", APIKey: "k"}, out, func() { handedOff.Store(true) }))

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.calls == 1
	}, 5*time.Second, time.Millisecond)

	cancel()
	<-run.Done()
	assert.Equal(t, StateCancelled, run.Snapshot().State)

	close(c.block)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, out.count())
	assert.False(t, handedOff.Load())
	assert.Equal(t, StateCancelled, run.Snapshot().State)
}

func TestRun_ProgressCappedWhileWaiting(t *testing.T) {
	c := &fakeCaller{text: twoIssues, ok: true, block: make(chan struct{})}
	s := fastScanner(fakeResolver{}, c)
	run := s.NewRun(nil)
	require.NoError(t, run.Start(context.Background(), models.DesignInput{Type: models.DesignTypeURL, APIKey: "k"}, &sink{}, nil))

	require.Eventually(t, func() bool {
		return run.Snapshot().Percent == MaxAnimatedPercent
	}, 5*time.Second, time.Millisecond)
	snap := run.Snapshot()
	assert.False(t, snap.Done)
	assert.Equal(t, len(Phases)-2, snap.PhaseIndex)

	close(c.block)
	<-run.Done()
	assert.Equal(t, 100.0, run.Snapshot().Percent)
}

func TestPercentAndPhase(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0, DefaultDuration, DefaultTick))
	assert.InDelta(t, 48.0, Percent(40, DefaultDuration, DefaultTick), 1e-9)
	assert.Equal(t, 90.0, Percent(75, DefaultDuration, DefaultTick))
	assert.Equal(t, 90.0, Percent(500, DefaultDuration, DefaultTick))

	assert.Equal(t, 0, PhaseIndex(0))
	assert.Equal(t, 4, PhaseIndex(45))
	assert.Equal(t, 8, PhaseIndex(90))
}

func TestSnapshotMessage(t *testing.T) {
	assert.Equal(t, Phases[2], Snapshot{Phase: Phases[2]}.Message())
	assert.Equal(t, "Retrying with x…", Snapshot{Phase: Phases[2], Status: "Retrying with x…"}.Message())
}
