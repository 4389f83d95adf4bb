package usecases

import (
	"context"
	"log"
	"time"

	"telereply/internal/entities"
	"telereply/internal/infrastructure"
	"telereply/internal/interfaces"
)

// Scheduler wakes up once a minute and sends every active scheduled message
// whose time-of-day matches the current minute and that has not already been
// sent today. A schedule that misses its minute (downtime, clock skew) is not
// sent late; it waits for the next day.
type Scheduler struct {
	registry  *infrastructure.SessionRegistry
	schedules interfaces.ScheduleStore
	interval  time.Duration
}

func NewScheduler(registry *infrastructure.SessionRegistry, schedules interfaces.ScheduleStore) *Scheduler {
	return &Scheduler{
		registry:  registry,
		schedules: schedules,
		interval:  60 * time.Second,
	}
}

// Run loops until ctx is cancelled. Intended to be started as a goroutine
// from main.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[SCHEDULER] started, checking every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SCHEDULER] stopped")
			return
		case now := <-ticker.C:
			s.RunOnce(ctx, now)
		}
	}
}

// RunOnce evaluates all active schedules against the given instant.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	hhmm := now.Format("15:04")
	today := now.Format("2006-01-02")

	schedules, err := s.schedules.ActiveSchedules(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] failed to load schedules: %v", err)
		return
	}

	for _, sched := range schedules {
		if sched.Time != hhmm || sched.LastSentDate == today {
			continue
		}
		s.dispatch(ctx, sched, today)
	}
}

// dispatch sends one schedule to all its targets. Per-target failures are
// logged and skipped; the schedule is marked sent for the day as long as the
// tenant had a live session, so a partially failed run does not repeat.
func (s *Scheduler) dispatch(ctx context.Context, sched entities.ScheduledMessage, today string) {
	client, ok := s.registry.LiveClient(sched.OwnerID)
	if !ok {
		log.Printf("[SCHEDULER] no live session for %s, skipping schedule %s", sched.OwnerID, sched.ID)
		return
	}

	sent := 0
	for _, chatID := range sched.ChatIDs {
		if err := client.SendMessage(ctx, entities.Peer{ChatID: chatID}, sched.Message); err != nil {
			log.Printf("[SCHEDULER] schedule %s: send to %d failed: %v", sched.ID, chatID, err)
			continue
		}
		sent++
	}
	for _, username := range sched.Usernames {
		if err := client.SendMessage(ctx, entities.Peer{Username: username}, sched.Message); err != nil {
			log.Printf("[SCHEDULER] schedule %s: send to @%s failed: %v", sched.ID, username, err)
			continue
		}
		sent++
	}

	if err := s.schedules.MarkScheduleSent(ctx, sched.ID, today); err != nil {
		log.Printf("[SCHEDULER] failed to mark schedule %s sent: %v", sched.ID, err)
		return
	}
	log.Printf("[SCHEDULER] schedule %s delivered to %d target(s) for %s", sched.ID, sent, sched.OwnerID)
}
