package daemon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_ScheduleCron(t *testing.T) {
	t.Run("returns job id for valid cron", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		id, err := s.ScheduleCron("test", "0 */4 * * *", func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id.String())
		assert.Equal(t, "0 */4 * * *", s.Cron())

		_, err = s.ScheduleCron("again", "0 * * * *", func() {})
		require.Error(t, err)
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleCron("test", "this is not a cron", func() {})
		require.Error(t, err)
		assert.Empty(t, s.Cron())
	})
}

func TestScheduler_Reschedule(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	require.Error(t, s.Reschedule("0 * * * *"))

	_, err = s.ScheduleCron("test", "0 6 * * *", func() {})
	require.NoError(t, err)
	s.Start(t.Context())
	require.False(t, s.NextRun().IsZero())

	require.NoError(t, s.Reschedule("30 7 * * *"))
	assert.Equal(t, "30 7 * * *", s.Cron())
	next := s.NextRun()
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 30, next.Minute())

	require.Error(t, s.Reschedule("nope"))
	assert.Equal(t, "30 7 * * *", s.Cron())
}
