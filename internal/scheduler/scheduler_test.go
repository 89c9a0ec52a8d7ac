package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/models"
	"courtbook/internal/service"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweep struct {
	runs    atomic.Int32
	active  atomic.Int32
	overlap atomic.Bool
	delay   time.Duration
}

func (c *countingSweep) Run(ctx context.Context) (int, error) {
	if c.active.Add(1) > 1 {
		c.overlap.Store(true)
	}
	defer c.active.Add(-1)
	c.runs.Add(1)
	time.Sleep(c.delay)
	return 1, nil
}

func TestRun_KicksImmediately(t *testing.T) {
	sweep := &countingSweep{}
	s := NewWithSweeps(nil, Sweep{Name: "slow", Interval: time.Hour, Run: sweep.Run})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return sweep.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_SweepNeverOverlapsItself(t *testing.T) {
	sweep := &countingSweep{delay: 20 * time.Millisecond}
	s := NewWithSweeps(nil, Sweep{Name: "busy", Interval: 2 * time.Millisecond, Run: sweep.Run})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, sweep.runs.Load(), int32(2))
	assert.False(t, sweep.overlap.Load())
	assert.Zero(t, sweep.active.Load())
}

func TestRun_RejectsNonPositiveInterval(t *testing.T) {
	s := NewWithSweeps(nil, Sweep{Name: "broken", Run: (&countingSweep{}).Run})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunOnce(t *testing.T) {
	failing := func(ctx context.Context) (int, error) { return 2, errors.New("store unavailable") }
	s := NewWithSweeps(nil,
		Sweep{Name: "ok", Interval: time.Minute, Run: (&countingSweep{}).Run},
		Sweep{Name: "failing", Interval: time.Minute, Run: failing},
	)
	ctx := context.Background()

	n, err := s.RunOnce(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.RunOnce(ctx, "failing")
	assert.EqualError(t, err, "store unavailable")
	assert.Equal(t, 2, n)

	_, err = s.RunOnce(ctx, "missing")
	assert.Error(t, err)
}

type noReminders struct{}

func (noReminders) SendDueReminders(ctx context.Context) (int, error) { return 0, nil }

func TestExpirySweep_PromotesNextInLine(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var ids []int64
	for i, owner := range []string{"u1", "u2", "u3"} {
		entry, created, err := db.JoinWaitlist(ctx, &models.WaitlistEntry{
			DesiredDate:     date,
			DesiredStart:    timeslot.Hour(18),
			DurationMinutes: 60,
			OwnerID:         owner,
			CreatedAt:       base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		require.True(t, created)
		ids = append(ids, entry.ID)
	}

	_, err = db.PromoteEntry(ctx, ids[0], base, 5*time.Minute)
	require.NoError(t, err)

	waitlist := service.NewWaitlistService(db, service.Collaborators{}, service.WaitlistOptions{
		NotifyWindow: 5 * time.Minute,
		BatchSize:    10,
	}, &logger)
	now := base.Add(5*time.Minute + time.Second)
	waitlist.SetClock(func() time.Time { return now })
	db.SetClock(func() time.Time { return now })

	s := New(noReminders{}, waitlist, config.SchedulerConfig{
		ReminderInterval: time.Minute,
		ExpiryInterval:   time.Minute,
	}, &logger)

	n, err := s.RunOnce(ctx, SweepWaitlistExpiry)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	first, err := db.GetWaitlistEntry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistExpired, first.Status)

	second, err := db.GetWaitlistEntry(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistNotified, second.Status)
	require.NotNil(t, second.ExpiresAt)
	assert.True(t, second.ExpiresAt.Equal(now.Add(5*time.Minute)))

	third, err := db.GetWaitlistEntry(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, models.WaitlistWaiting, third.Status)

	// nothing is overdue until the second window closes
	n, err = s.RunOnce(ctx, SweepWaitlistExpiry)
	require.NoError(t, err)
	assert.Zero(t, n)
}
