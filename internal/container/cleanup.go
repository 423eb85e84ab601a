package container

import (
	"context"
	"sync"

	"github.com/policyqa/core/internal/logger"
	"github.com/policyqa/core/internal/types"
	"github.com/policyqa/core/internal/types/interfaces"
)

// resourceCleaner collects teardown steps for every long-lived resource the
// container wires and runs them in reverse registration order on shutdown.
type resourceCleaner struct {
	mu       sync.Mutex
	cleanups []types.CleanupFunc
	names    []string
}

// NewResourceCleaner builds an interfaces.ResourceCleaner.
func NewResourceCleaner() interfaces.ResourceCleaner {
	return &resourceCleaner{}
}

func (c *resourceCleaner) Register(cleanup types.CleanupFunc) {
	c.RegisterWithName("", cleanup)
}

func (c *resourceCleaner) RegisterWithName(name string, cleanup types.CleanupFunc) {
	if cleanup == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanups = append(c.cleanups, cleanup)
	c.names = append(c.names, name)
}

// Cleanup runs every registered step in reverse order, collecting rather
// than stopping on the first failure, so one bad teardown never strands
// the rest.
func (c *resourceCleaner) Cleanup(ctx context.Context) []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
			return errs
		default:
		}
		if err := c.cleanups[i](); err != nil {
			if c.names[i] != "" {
				logger.Errorf(ctx, "cleanup %q failed: %v", c.names[i], err)
			}
			errs = append(errs, err)
		}
	}
	return errs
}
