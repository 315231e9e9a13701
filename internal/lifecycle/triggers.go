package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i-Rony/WeatherBoard/internal/connectivity"
)

// ErrNotReady is returned by OnPullToRefresh when the gate (online AND
// authenticated) does not pass.
var ErrNotReady = errors.New("offline or not authenticated")

// DefaultFocusDebounce coalesces rapid favorites-screen focus events.
const DefaultFocusDebounce = 300 * time.Millisecond

// Session reports whether a user session is currently authenticated. The
// core never manages tokens; it only consumes this yes/no.
type Session interface {
	Authenticated() bool
}

// Reconciler is the favorites reconcile entry point.
type Reconciler interface {
	ReconcileAll(ctx context.Context) int
}

// Drainer flushes the offline pending-fetch queue.
type Drainer interface {
	DrainPending(ctx context.Context) error
}

// Trigger invokes the reconciler on lifecycle events, gated on connectivity
// and authentication. All triggers except pull-to-refresh log and discard
// the run's outcome.
type Trigger struct {
	reconciler Reconciler
	drainer    Drainer
	oracle     connectivity.Oracle
	session    Session
	logger     *zap.Logger
	debounce   time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewTrigger creates a Trigger. debounce applies to favorites-screen focus
// events and defaults to 300ms when zero. drainer may be nil.
func NewTrigger(reconciler Reconciler, drainer Drainer, oracle connectivity.Oracle, session Session, logger *zap.Logger, debounce time.Duration) *Trigger {
	if debounce <= 0 {
		debounce = DefaultFocusDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		reconciler: reconciler,
		drainer:    drainer,
		oracle:     oracle,
		session:    session,
		logger:     logger,
		debounce:   debounce,
	}
}

func (t *Trigger) gate(ctx context.Context) bool {
	if !t.oracle.Check(ctx).Online() {
		t.logger.Debug("trigger gated: offline")
		return false
	}
	if t.session != nil && !t.session.Authenticated() {
		t.logger.Debug("trigger gated: not authenticated")
		return false
	}
	return true
}

// OnAppStart runs at launch: flush the pending queue accumulated while
// offline, then reconcile. The outcome is logged, not returned.
func (t *Trigger) OnAppStart(ctx context.Context) {
	if !t.gate(ctx) {
		return
	}
	if t.drainer != nil {
		if err := t.drainer.DrainPending(ctx); err != nil {
			t.logger.Warn("pending drain failed", zap.Error(err))
		}
	}
	count := t.reconciler.ReconcileAll(ctx)
	t.logger.Info("startup reconcile", zap.Int("updated", count))
}

// OnLoginSuccess runs after authentication succeeds.
func (t *Trigger) OnLoginSuccess(ctx context.Context) {
	if !t.gate(ctx) {
		return
	}
	count := t.reconciler.ReconcileAll(ctx)
	t.logger.Info("post-login reconcile", zap.Int("updated", count))
}

// OnFavoritesFocus schedules a reconcile after the debounce window; rapid
// repeat calls reset the window so only the last one fires.
func (t *Trigger) OnFavoritesFocus() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, func() {
		ctx := context.Background()
		if !t.gate(ctx) {
			return
		}
		count := t.reconciler.ReconcileAll(ctx)
		t.logger.Info("focus reconcile", zap.Int("updated", count))
	})
}

// OnPullToRefresh reconciles and returns the count so the caller can re-list
// favorites afterward. Returns ErrNotReady when the gate does not pass.
func (t *Trigger) OnPullToRefresh(ctx context.Context) (int, error) {
	if !t.gate(ctx) {
		return 0, ErrNotReady
	}
	return t.reconciler.ReconcileAll(ctx), nil
}
