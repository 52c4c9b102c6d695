package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (r *recordingSubmitter) Submit(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[name]++
	return r.err
}

func (r *recordingSubmitter) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func TestIntervalTrigger_SubmitsOnInterval(t *testing.T) {
	sub := &recordingSubmitter{}
	trigger := NewIntervalTrigger(sub, nil,
		Entry{Task: "analytics.warm", Every: 10 * time.Millisecond},
		Entry{Task: "disabled", Every: 0, RunOnStart: true},
	)
	require.NoError(t, trigger.Start(context.Background()))

	require.Eventually(t, func() bool { return sub.count("analytics.warm") >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, trigger.Stop(context.Background()))
	assert.Zero(t, sub.count("disabled"))

	stopped := sub.count("analytics.warm")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, sub.count("analytics.warm"))
}

func TestIntervalTrigger_RunOnStart(t *testing.T) {
	sub := &recordingSubmitter{}
	trigger := NewIntervalTrigger(sub, nil, Entry{Task: "currency.refresh", Every: time.Hour, RunOnStart: true})
	require.NoError(t, trigger.Start(context.Background()))
	t.Cleanup(func() { _ = trigger.Stop(context.Background()) })

	require.Eventually(t, func() bool { return sub.count("currency.refresh") == 1 }, time.Second, 5*time.Millisecond)
}

func TestIntervalTrigger_ToleratesBusyTask(t *testing.T) {
	sub := &recordingSubmitter{err: ErrJobAlreadyQueued}
	trigger := NewIntervalTrigger(sub, nil, Entry{Task: "slow", Every: 5 * time.Millisecond})
	require.NoError(t, trigger.Start(context.Background()))

	require.Eventually(t, func() bool { return sub.count("slow") >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, trigger.Stop(context.Background()))
}

func TestIntervalTrigger_WithScheduler(t *testing.T) {
	s := newTestScheduler(t, DefaultSchedulerConfig())
	ran := make(chan struct{}, 1)
	s.Register("currency.refresh", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(t, s.Start(context.Background()))

	trigger := NewIntervalTrigger(s, nil, Entry{Task: "currency.refresh", Every: time.Hour, RunOnStart: true})
	require.NoError(t, trigger.Start(context.Background()))
	t.Cleanup(func() { _ = trigger.Stop(context.Background()) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}
