package invoke

// State names the provider the router currently prefers.
type State string

const (
	StatePrimary  State = "primary"
	StateFallback State = "fallback"
)

// Router tracks which provider a run should call next. The transition from
// primary to fallback is one-directional within a run: once the consecutive
// primary failure count reaches the threshold, every later request skips the
// primary. A fresh run gets a fresh router.
//
// Stages process articles sequentially in one worker, so the router needs no
// locking; calls observe failures in real issuance order.
type Router struct {
	state     State
	failures  int
	threshold int
}

// NewRouter constructs the per-run router. When forceFallback is set the
// router starts (and stays) in the fallback state; cross-validation uses this
// to keep its runs off the primary quota.
func NewRouter(threshold int, forceFallback bool) *Router {
	if threshold <= 0 {
		threshold = 3
	}
	state := StatePrimary
	if forceFallback {
		state = StateFallback
	}
	return &Router{state: state, threshold: threshold}
}

// State reports the router's current state.
func (r *Router) State() State { return r.state }

// Failures reports the accumulated consecutive primary failure count.
func (r *Router) Failures() int { return r.failures }

// UsePrimary reports whether the next request should try the primary.
func (r *Router) UsePrimary() bool {
	return r.state == StatePrimary && r.failures < r.threshold
}

// RecordPrimaryFailure counts one fully failed primary call sequence (initial
// call plus its retry). Reaching the threshold locks the run onto the
// fallback. A later primary success does not roll the counter back.
func (r *Router) RecordPrimaryFailure() {
	r.failures++
	if r.failures >= r.threshold {
		r.state = StateFallback
	}
}
