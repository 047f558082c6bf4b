package scheduler

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatInvokesCallback(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(30*time.Minute, func(_ context.Context) {
		fired <- struct{}{}
	}, zerolog.New(os.Stdout).Level(zerolog.Disabled))

	_, ok := s.LastHeartbeat()
	assert.False(t, ok)

	s.heartbeat()

	select {
	case <-fired:
	default:
		t.Fatal("heartbeat callback not invoked")
	}

	last, ok := s.LastHeartbeat()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().UTC(), last, time.Minute)
}

func TestStartStop(t *testing.T) {
	s := New(30*time.Minute, nil, zerolog.New(os.Stdout).Level(zerolog.Disabled))
	require.NoError(t, s.Start())
	s.Stop()
}

func TestStartRejectsInvalidInterval(t *testing.T) {
	s := New(0, nil, zerolog.New(os.Stdout).Level(zerolog.Disabled))
	assert.Error(t, s.Start())
}
