package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobFunc(t *testing.T) {
	called := false
	job := NewJob("evaluate", func(context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, "evaluate", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, called)
}

func TestJobFuncPropagatesError(t *testing.T) {
	job := NewJob("failing", func(context.Context) error {
		return errors.New("boom")
	})
	assert.Error(t, job.Run(context.Background()))
}

func TestAddJobValidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("30 22 * * *", NewJob("evaluate", func(context.Context) error { return nil }))
	assert.NoError(t, err)
}

func TestAddJobInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", NewJob("evaluate", func(context.Context) error { return nil }))
	assert.Error(t, err)
}
