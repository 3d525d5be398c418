package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TokenReconciler zeroes expired free-token pools.
type TokenReconciler interface {
	ReconcileExpiredFreeTokens(ctx context.Context) (int, error)
}

// BoostNotifier announces boost windows that closed in (from, to].
type BoostNotifier interface {
	PublishExpired(ctx context.Context, from, to time.Time) (int, error)
}

// WatermarkStore persists sweep progress across restarts.
type WatermarkStore interface {
	LoadWatermark(ctx context.Context, name string) (time.Time, bool, error)
	SaveWatermark(ctx context.Context, name string, at time.Time) error
}

const boostSweep = "boost.expired"

// Worker handles the periodic expiry sweep. Reads already treat expired free
// tokens and boosts as gone; the sweep tidies stored rows and notifies.
type Worker struct {
	tokens   TokenReconciler
	boosts   BoostNotifier
	marks    WatermarkStore
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	watermark time.Time
	loaded    bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWorker creates a new expiry worker. With marks set the boost sweep resumes
// from the last saved position; otherwise, and on the very first run, it
// starts at construction time.
func NewWorker(tokens TokenReconciler, boosts BoostNotifier, marks WatermarkStore, interval time.Duration, now func() time.Time) *Worker {
	if interval == 0 {
		interval = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Worker{
		tokens:    tokens,
		boosts:    boosts,
		marks:     marks,
		interval:  interval,
		now:       now,
		watermark: now(),
		loaded:    marks == nil,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background worker
func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting expiry reconciler...")
	go w.loop(context.Background())
}

// Stop gracefully stops the background worker
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		log.Info().Msg("Stopping expiry reconciler...")
		close(w.stopCh)
	})
}

// Run sweeps until ctx is done or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().Dur("interval", w.interval).Msg("Starting expiry reconciler...")
	w.loop(ctx)
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs one sweep.
func (w *Worker) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	log.Debug().Msg("Starting expiry sweep...")

	// 1. Zero expired free pools
	count, err := w.tokens.ReconcileExpiredFreeTokens(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reconcile expired free tokens")
	} else if count > 0 {
		log.Info().Int("count", count).Msg("Reconciled expired free token pools")
	}

	// 2. Announce boosts that ended since the last sweep
	from, ok := w.boostWatermark(ctx)
	if ok {
		to := w.now()
		count, err = w.boosts.PublishExpired(ctx, from, to)
		if err != nil {
			log.Error().Err(err).Msg("Failed to publish expired boosts")
		} else {
			w.advance(ctx, to)
			if count > 0 {
				log.Info().Int("count", count).Msg("Published expired boosts")
			}
		}
	}

	log.Debug().Msg("Finished expiry sweep")
}

func (w *Worker) boostWatermark(ctx context.Context) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		at, found, err := w.marks.LoadWatermark(ctx, boostSweep)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load boost sweep watermark")
			return time.Time{}, false
		}
		if found {
			w.watermark = at
		}
		w.loaded = true
	}
	return w.watermark, true
}

func (w *Worker) advance(ctx context.Context, to time.Time) {
	w.mu.Lock()
	w.watermark = to
	w.mu.Unlock()

	if w.marks == nil {
		return
	}
	if err := w.marks.SaveWatermark(ctx, boostSweep, to); err != nil {
		log.Warn().Err(err).Time("swept_to", to).Msg("Failed to save boost sweep watermark")
	}
}
