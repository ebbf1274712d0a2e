package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/loader"
	"github.com/sells-group/jep-dashboard/internal/model"
)

// LoadRecorder turns loader observations into LoadEvents. A repeat of the
// previous outcome for the same source (same status and signature) is not
// stored again, so a missing file polled by every request logs once.
type LoadRecorder struct {
	st      Store
	timeout time.Duration

	mu   sync.Mutex
	last map[string]string
}

// NewLoadRecorder wraps st.
func NewLoadRecorder(st Store) *LoadRecorder {
	return &LoadRecorder{st: st, timeout: 5 * time.Second, last: make(map[string]string)}
}

// EventFor builds the LoadEvent describing one load outcome.
func EventFor(path string, tbl *model.Table, err error) *model.LoadEvent {
	ev := &model.LoadEvent{Source: path, Status: model.LoadStatusOK, CreatedAt: time.Now().UTC()}
	switch {
	case err == nil:
		ev.Signature = tbl.Signature
		ev.Rows = tbl.Len()
	default:
		ev.Status = model.LoadStatusFailed
		if le, ok := loader.AsLoadError(err); ok && le.Kind == loader.KindNotFound {
			ev.Status = model.LoadStatusNotFound
		}
		ev.Error = err.Error()
	}
	return ev
}

// Observe records the outcome. It has the loader.LoadObserver signature.
func (r *LoadRecorder) Observe(path string, tbl *model.Table, err error, _ time.Duration) {
	ev := EventFor(path, tbl, err)
	key := string(ev.Status) + "|" + ev.Signature

	r.mu.Lock()
	if r.last[path] == key {
		r.mu.Unlock()
		return
	}
	r.last[path] = key
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.st.RecordLoad(ctx, ev); err != nil {
		zap.L().Warn("store: record load event", zap.String("source", path), zap.Error(err))
	}
}
