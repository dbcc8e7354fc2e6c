package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSpec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"0 4 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"0 4 * *", true},
		{"not a cron", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := ValidateSpec(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	_, err := New(func(context.Context) error { return nil }, Options{Spec: "61 * * * *"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(nil, Options{Spec: "0 4 * * *"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduler_RunOnStart(t *testing.T) {
	var calls atomic.Int32
	job := func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("job errors are logged, not fatal")
	}

	s, err := New(job, Options{Spec: "0 4 1 1 *", RunOnStart: true, StartDelay: 10 * time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	s.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Next().IsZero())

	s.Stop()
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_StopCancelsPendingStartRun(t *testing.T) {
	var calls atomic.Int32
	job := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}

	s, err := New(job, Options{Spec: "0 4 * * *", RunOnStart: true, StartDelay: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	s.Start(context.Background())
	s.Stop()

	assert.Zero(t, calls.Load())
}

func TestScheduler_StopWaitsForRunningJob(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	job := func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	}

	s, err := New(job, Options{Spec: "0 4 * * *", RunOnStart: true, StartDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)

	s.Start(context.Background())
	<-started
	s.Stop()

	assert.True(t, finished.Load())
}
