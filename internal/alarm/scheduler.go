package alarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DainoJung/brawl-star/internal/models"
	"go.uber.org/zap"
)

const alarmTitle = "💊 복약 시간입니다!"

// ScheduleSource is the read-only schedule store consumed once per tick.
type ScheduleSource interface {
	ListAll(ctx context.Context) ([]models.Medicine, error)
}

// UserSender fans one notification out to every device a user has
// registered.
type UserSender interface {
	SendToUser(ctx context.Context, userID, title, body string, payload models.AlarmPayload, tag string) (models.DispatchResult, error)
}

// EventPublisher receives per-user dispatch summaries. Optional.
type EventPublisher interface {
	PublishAlarmEvent(ctx context.Context, event models.AlarmEvent) error
}

// Scheduler owns the per-minute alarm loop. One instance per process;
// the entry point constructs it, starts it before serving and stops it
// on shutdown. Start and Stop are safe to call from any goroutine.
type Scheduler struct {
	schedules     ScheduleSource
	sender        UserSender
	events        EventPublisher
	loc           *time.Location
	maxConcurrent int
	log           *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewScheduler(schedules ScheduleSource, sender UserSender, events EventPublisher, loc *time.Location, maxConcurrent int, log *zap.Logger) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		schedules:     schedules,
		sender:        sender,
		events:        events,
		loc:           loc,
		maxConcurrent: maxConcurrent,
		log:           log.Named("alarm_scheduler"),
	}
}

// Start launches the timer loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler already running")
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Info("scheduler started", zap.String("timezone", s.loc.String()))
}

// Stop cancels the loop and blocks until it has fully exited, so no
// tick is abandoned without the caller knowing. Cancellation during the
// inter-tick sleep is immediate; a dispatch already in flight finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		// Wake at the next minute boundary. The select keeps the sleep
		// interruptible so Stop never waits out a full minute.
		now := time.Now().In(s.loc)
		delay := time.Duration(60-now.Second()) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if ctx.Err() != nil {
			return
		}

		if fault := s.safeTick(ctx); fault != nil {
			s.log.Error("scheduler loop fault, backing off", zap.Error(fault))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Minute):
			}
		}
	}
}

// safeTick converts a panic escaping the tick into a loop-level fault.
// Business errors inside the tick are logged where they happen and
// never reach here.
func (s *Scheduler) safeTick(ctx context.Context) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	s.Tick(ctx, time.Now().In(s.loc))
	return nil
}

// Tick runs one due-check-and-dispatch cycle for the given instant. The
// instant is a parameter so tests can drive the cycle without waiting
// on wall clock.
func (s *Scheduler) Tick(ctx context.Context, at time.Time) {
	// A tick that has started runs to completion: cancellation is the
	// loop's exit signal, not an abort for dispatches in flight. The
	// dispatcher's per-send timeout bounds how long completion takes.
	ctx = context.WithoutCancel(ctx)

	currentTime := at.Format("15:04")
	log := s.log.With(zap.String("time", currentTime), zap.String("day", WeekdayLabel(at)))

	entries, err := s.schedules.ListAll(ctx)
	if err != nil {
		log.Error("failed to read schedule store", zap.Error(err))
		return
	}

	due := Match(entries, at)
	if len(due) == 0 {
		log.Debug("no alarms due")
		return
	}

	// Users are independent; fan out concurrently but keep outbound
	// transport pressure bounded.
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	for userID, meds := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(userID string, meds []models.Medicine) {
			defer wg.Done()
			defer func() { <-sem }()
			s.notifyUser(ctx, userID, currentTime, meds)
		}(userID, meds)
	}
	wg.Wait()
}

func (s *Scheduler) notifyUser(ctx context.Context, userID, currentTime string, meds []models.Medicine) {
	log := s.log.With(zap.String("user_id", userID), zap.String("time", currentTime))
	defer func() {
		if r := recover(); r != nil {
			log.Error("alarm dispatch panicked", zap.Any("panic", r))
		}
	}()

	names := make([]string, len(meds))
	ids := make([]string, len(meds))
	for i, m := range meds {
		names[i] = m.Name
		ids[i] = m.ID
	}

	body := fmt.Sprintf("%s %s\n%s", currentTime, timingText(meds[0].Timing), strings.Join(names, ", "))
	payload := models.AlarmPayload{
		Type:        "alarm",
		Time:        currentTime,
		Medicines:   names,
		MedicineIDs: ids,
	}
	tag := fmt.Sprintf("alarm-%s-%s", currentTime, userID)

	result, err := s.sender.SendToUser(ctx, userID, alarmTitle, body, payload, tag)
	if err != nil {
		log.Error("alarm dispatch failed", zap.Error(err))
		return
	}
	log.Info("alarm dispatched",
		zap.Int("medicines", len(meds)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)

	if s.events != nil {
		event := models.AlarmEvent{
			UserID:    userID,
			Time:      currentTime,
			Medicines: names,
			Sent:      result.Sent,
			Failed:    result.Failed,
			Timestamp: time.Now().UTC(),
		}
		if err := s.events.PublishAlarmEvent(ctx, event); err != nil {
			log.Warn("failed to publish alarm event", zap.Error(err))
		}
	}
}

func timingText(timing string) string {
	switch timing {
	case "before_meal":
		return "식전"
	case "after_meal":
		return "식후"
	default:
		return ""
	}
}
