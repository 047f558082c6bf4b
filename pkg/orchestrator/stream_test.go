package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelayForwardsAndAccumulates(t *testing.T) {
	out := make(chan string, 4)
	r := newRelay(context.Background(), out)

	r.Emit("a")
	r.Emit("b")
	r.Emit("c")

	assert.Equal(t, "abc", r.Text())
	close(out)

	var got []string
	for tok := range out {
		got = append(got, tok)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRelayKeepsAccumulatingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan string) // unbuffered, nobody reading

	r := newRelay(ctx, out)
	cancel()

	// Emit must not block even though the caller is gone.
	r.Emit("partial ")
	r.Emit("output")

	assert.Equal(t, "partial output", r.Text())
}
