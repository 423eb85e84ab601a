package orchestrator

import (
	"github.com/panjf2000/ants/v2"

	apperrors "github.com/policyqa/core/internal/errors"
)

// admission gates entry to the retrieve/generate portion of the pipeline:
// at most R concurrent full pipelines. Stage A/B cache hits are answered
// before admission and do not count against the limit; the Stage C lookup
// runs after embedding inside the admitted section, so a Stage C hit holds
// a slot while it is served. It follows the ants.Pool worker-pool idiom used for embedding
// batching, but run in non-blocking mode so a pool at capacity rejects
// immediately instead of queuing the caller.
type admission struct {
	pool *ants.Pool
}

func newAdmission(maxInflight int) (*admission, error) {
	if maxInflight <= 0 {
		maxInflight = 64
	}
	pool, err := ants.NewPool(maxInflight, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &admission{pool: pool}, nil
}

// run admits fn if a slot is free, blocking the caller until fn returns,
// or rejects immediately with a rate_limited AppError when the pool is
// already at capacity.
func (a *admission) run(fn func()) error {
	done := make(chan struct{})
	err := a.pool.Submit(func() {
		defer close(done)
		fn()
	})
	if err != nil {
		return apperrors.NewRateLimited("too many concurrent queries in flight").WithRetryAfter(500)
	}
	<-done
	return nil
}

func (a *admission) release() {
	a.pool.Release()
}
