package orchestrator

import (
	"context"
	"strings"
)

// relay forwards tokens to the caller while accumulating the full text for
// logging and cost accounting. Once the caller's context is canceled,
// delivery stops but accumulation continues, so side effects are finalized
// for whatever the backend produced.
type relay struct {
	ctx      context.Context
	out      chan<- string
	b        strings.Builder
	detached bool
}

func newRelay(ctx context.Context, out chan<- string) *relay {
	return &relay{ctx: ctx, out: out}
}

// Emit accumulates the token and forwards it unless the caller is gone.
func (r *relay) Emit(token string) {
	r.b.WriteString(token)
	if r.detached {
		return
	}
	select {
	case r.out <- token:
	case <-r.ctx.Done():
		r.detached = true
	}
}

// Text returns everything accumulated so far.
func (r *relay) Text() string {
	return r.b.String()
}
