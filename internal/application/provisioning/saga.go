package provisioning

import (
	"context"

	"github.com/bau/backend/internal/domain/provisioning"
)

// sagaStep pairs a forward action with the compensation that undoes it.
// A nil compensate means the step leaves nothing behind. Once a final step
// succeeds the run is committed and is no longer rolled back.
type sagaStep struct {
	name       string
	state      provisioning.State
	started    string
	action     func(ctx context.Context) (string, error)
	compensate func(ctx context.Context) error
	final      bool
}

// completed records steps whose action succeeded, in execution order
type completed []sagaStep

// reversed returns completed steps that own a compensation, last first
func (c completed) reversed() []sagaStep {
	out := make([]sagaStep, 0, len(c))
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].compensate != nil {
			out = append(out, c[i])
		}
	}
	return out
}
