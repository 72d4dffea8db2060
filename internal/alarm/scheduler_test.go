package alarm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DainoJung/brawl-star/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSchedules struct {
	entries []models.Medicine
	err     error
}

func (s *stubSchedules) ListAll(ctx context.Context) ([]models.Medicine, error) {
	return s.entries, s.err
}

type sendCall struct {
	userID  string
	title   string
	body    string
	payload models.AlarmPayload
	tag     string
}

type recordingSender struct {
	mu     sync.Mutex
	calls  []sendCall
	result models.DispatchResult
	err    error
}

func (r *recordingSender) SendToUser(ctx context.Context, userID, title, body string, payload models.AlarmPayload, tag string) (models.DispatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sendCall{userID, title, body, payload, tag})
	return r.result, r.err
}

func (r *recordingSender) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []models.AlarmEvent
}

func (r *recordingEvents) PublishAlarmEvent(ctx context.Context, event models.AlarmEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func newTestScheduler(schedules ScheduleSource, sender UserSender, events EventPublisher) *Scheduler {
	return NewScheduler(schedules, sender, events, time.UTC, 4, zap.NewNop())
}

func TestTick_DispatchesOneJobPerUser(t *testing.T) {
	schedules := &stubSchedules{entries: []models.Medicine{
		{ID: "m1", UserID: "u1", Name: "아스피린", Timing: "after_meal", Times: []string{"08:00"}},
		{ID: "m2", UserID: "u1", Name: "오메가3", Timing: "after_meal", Times: []string{"08:00"}},
		{ID: "m3", UserID: "u2", Name: "비타민", Times: []string{"08:00"}},
	}}
	sender := &recordingSender{result: models.DispatchResult{Sent: 1}}
	events := &recordingEvents{}
	s := newTestScheduler(schedules, sender, events)

	s.Tick(context.Background(), monday(8, 0, 10))

	require.Equal(t, 2, sender.callCount())

	var u1 sendCall
	for _, call := range sender.calls {
		if call.userID == "u1" {
			u1 = call
		}
	}
	assert.Equal(t, "💊 복약 시간입니다!", u1.title)
	assert.Equal(t, "08:00 식후\n아스피린, 오메가3", u1.body)
	assert.Equal(t, "alarm-08:00-u1", u1.tag)
	assert.Equal(t, "alarm", u1.payload.Type)
	assert.Equal(t, []string{"m1", "m2"}, u1.payload.MedicineIDs)

	require.Len(t, events.events, 2)
	for _, ev := range events.events {
		assert.Equal(t, 1, ev.Sent)
		assert.Equal(t, 0, ev.Failed)
	}
}

func TestTick_NothingDue(t *testing.T) {
	schedules := &stubSchedules{entries: []models.Medicine{
		{ID: "m1", UserID: "u1", Name: "아스피린", Times: []string{"08:00"}},
	}}
	sender := &recordingSender{}
	s := newTestScheduler(schedules, sender, nil)

	s.Tick(context.Background(), monday(8, 1, 0))

	assert.Zero(t, sender.callCount())
}

func TestTick_ScheduleStoreErrorDoesNotDispatch(t *testing.T) {
	schedules := &stubSchedules{err: errors.New("store unavailable")}
	sender := &recordingSender{}
	s := newTestScheduler(schedules, sender, nil)

	assert.NotPanics(t, func() {
		s.Tick(context.Background(), monday(8, 0, 0))
	})
	assert.Zero(t, sender.callCount())
}

func TestTick_SenderErrorIsolatedPerUser(t *testing.T) {
	schedules := &stubSchedules{entries: []models.Medicine{
		{ID: "m1", UserID: "u1", Name: "아스피린", Times: []string{"08:00"}},
		{ID: "m2", UserID: "u2", Name: "비타민", Times: []string{"08:00"}},
	}}
	sender := &recordingSender{err: errors.New("transport down")}
	s := newTestScheduler(schedules, sender, nil)

	assert.NotPanics(t, func() {
		s.Tick(context.Background(), monday(8, 0, 0))
	})
	// both users were still attempted
	assert.Equal(t, 2, sender.callCount())
}

// watchfulSender reports whether its context was cancelled while a
// dispatch was still in flight.
type watchfulSender struct {
	started   chan struct{}
	mu        sync.Mutex
	cancelled bool
}

func (w *watchfulSender) SendToUser(ctx context.Context, userID, title, body string, payload models.AlarmPayload, tag string) (models.DispatchResult, error) {
	close(w.started)
	select {
	case <-ctx.Done():
		w.mu.Lock()
		w.cancelled = true
		w.mu.Unlock()
	case <-time.After(200 * time.Millisecond):
	}
	return models.DispatchResult{Sent: 1}, nil
}

func TestTick_InFlightDispatchSurvivesCancellation(t *testing.T) {
	schedules := &stubSchedules{entries: []models.Medicine{
		{ID: "m1", UserID: "u1", Name: "아스피린", Times: []string{"08:00"}},
	}}
	sender := &watchfulSender{started: make(chan struct{})}
	s := newTestScheduler(schedules, sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	tickDone := make(chan struct{})
	go func() {
		s.Tick(ctx, monday(8, 0, 0))
		close(tickDone)
	}()

	// cancel the loop context while the dispatch is in flight
	<-sender.started
	cancel()

	select {
	case <-tickDone:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not complete")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.False(t, sender.cancelled, "loop cancellation must not abort a dispatch in flight")
}

func TestStartStop_Lifecycle(t *testing.T) {
	schedules := &stubSchedules{}
	sender := &recordingSender{}
	s := newTestScheduler(schedules, sender, nil)

	assert.False(t, s.Running())
	s.Start()
	assert.True(t, s.Running())

	// second Start is a no-op, not a second loop
	s.Start()
	assert.True(t, s.Running())

	// Stop interrupts the inter-tick sleep and waits for loop exit
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while loop was mid-sleep")
	}
	assert.False(t, s.Running())

	// no dispatch happens after Stop has returned
	before := sender.callCount()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, before, sender.callCount())

	// Stop on a stopped scheduler is a no-op
	s.Stop()
}

func TestStartStop_Restartable(t *testing.T) {
	s := newTestScheduler(&stubSchedules{}, &recordingSender{}, nil)

	s.Start()
	s.Stop()
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())
}

func TestTimingText(t *testing.T) {
	assert.Equal(t, "식전", timingText("before_meal"))
	assert.Equal(t, "식후", timingText("after_meal"))
	assert.Equal(t, "", timingText("anytime"))
	assert.Equal(t, "", timingText(""))
}
