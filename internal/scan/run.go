package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joescharf/auditwise/internal/models"
)

// ErrAlreadyStarted is returned when Start is called on a run that is not idle.
var ErrAlreadyStarted = errors.New("scan already started")

// State is the orchestrator state.
type State string

const (
	StateIdle           State = "idle"
	StateResolvingAsset State = "resolving_asset"
	StateCallingAI      State = "calling_ai"
	StateParsing        State = "parsing"
	StateComplete       State = "complete"
	StateCancelled      State = "cancelled"
)

// Snapshot is an immutable view of a run.
type Snapshot struct {
	State      State   `json:"state"`
	Percent    float64 `json:"percent"`
	PhaseIndex int     `json:"phaseIndex"`
	Phase      string  `json:"phase"`
	Status     string  `json:"status,omitempty"`
	Done       bool    `json:"done"`
	HandedOff  bool    `json:"handedOff"`
}

// Message is the single line shown under the progress bar.
func (s Snapshot) Message() string {
	if s.Done {
		return StatusDone
	}
	if s.Status != "" {
		return s.Status
	}
	return s.Phase
}

// Committer receives the finished result in a single call.
type Committer interface {
	Commit(designImage string, issues []models.Issue)
}

// Run is one scan. A Run starts at most once.
type Run struct {
	scanner  *Scanner
	onUpdate func(Snapshot)

	mu        sync.Mutex
	snap      Snapshot
	started   bool
	cancelled bool
	done      chan struct{}
}

// NewRun creates an idle run. onUpdate, if set, is called with every new
// snapshot; it must not block.
func (s *Scanner) NewRun(onUpdate func(Snapshot)) *Run {
	return &Run{
		scanner:  s,
		onUpdate: onUpdate,
		snap:     Snapshot{State: StateIdle, Phase: Phases[0]},
		done:     make(chan struct{}),
	}
}

// Snapshot returns the current state of the run.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Done is closed once the run has handed off or been cancelled.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Start begins the scan in the background. Cancelling ctx stops the progress
// animation and suppresses the commit and hand-off; the in-flight resolution
// or AI call is not aborted and its result is discarded.
func (r *Run) Start(ctx context.Context, in models.DesignInput, sink Committer, onHandOff func()) error {
	r.mu.Lock()
	if r.started || r.snap.State != StateIdle {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	go r.loop(ctx, in, sink, onHandOff)
	return nil
}

func (r *Run) loop(ctx context.Context, in models.DesignInput, sink Committer, onHandOff func()) {
	defer close(r.done)

	results := make(chan Result, 1)
	go func() {
		results <- r.scanner.execute(context.WithoutCancel(ctx), in, r)
	}()

	ticker := time.NewTicker(r.scanner.Tick)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			r.cancel()
			return
		case <-ticker.C:
			tick++
			r.advance(tick)
		case res := <-results:
			ticker.Stop()
			if !r.complete(ctx, sink, res) {
				return
			}
			r.handOff(ctx, onHandOff)
			return
		}
	}
}

func (r *Run) advance(tick int) {
	p := Percent(tick, r.scanner.Duration, r.scanner.Tick)
	r.update(func(s *Snapshot) {
		if s.Done {
			return
		}
		s.Percent = p
		s.PhaseIndex = max(s.PhaseIndex, PhaseIndex(p))
		s.Phase = Phases[s.PhaseIndex]
	})
}

func (r *Run) complete(ctx context.Context, sink Committer, res Result) bool {
	r.mu.Lock()
	if r.cancelled || ctx.Err() != nil {
		r.mu.Unlock()
		r.cancel()
		return false
	}
	r.mu.Unlock()

	if sink != nil {
		sink.Commit(res.DesignImage, res.Issues)
	}
	r.update(func(s *Snapshot) {
		s.State = StateComplete
		s.Percent = 100
		s.PhaseIndex = len(Phases) - 1
		s.Phase = Phases[s.PhaseIndex]
		s.Done = true
	})
	return true
}

func (r *Run) handOff(ctx context.Context, onHandOff func()) {
	t := time.NewTimer(r.scanner.HandOffDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	r.update(func(s *Snapshot) { s.HandedOff = true })
	if onHandOff != nil {
		onHandOff()
	}
}

func (r *Run) cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled || r.snap.Done {
		return
	}
	r.cancelled = true
	r.snap.State = StateCancelled
}

// update applies fn and publishes the new snapshot. Updates after
// cancellation are dropped.
func (r *Run) update(fn func(*Snapshot)) {
	r.mu.Lock()
	if r.cancelled {
		r.mu.Unlock()
		return
	}
	fn(&r.snap)
	snap := r.snap
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
}

func (r *Run) setState(st State) {
	r.update(func(s *Snapshot) {
		if !s.Done {
			s.State = st
		}
	})
}

func (r *Run) setStatus(msg string) {
	r.update(func(s *Snapshot) { s.Status = msg })
}

func (r *Run) setPhase(i int) {
	r.update(func(s *Snapshot) {
		s.PhaseIndex = i
		s.Phase = Phases[i]
	})
}
