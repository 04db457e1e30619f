// Package scheduler provides cron-based background jobs for the loan intake
// service.
//
// Its main consumer is the idle-session reminder, which nudges SMS applicants
// whose applications have stalled mid-conversation.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crestline/loanintake/internal/messaging"
	"github.com/crestline/loanintake/internal/store"
)

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// DefaultMaxIdle is how long a session may sit untouched before the
// applicant is nudged.
const DefaultMaxIdle = 24 * time.Hour

// ReminderMessage is the nudge sent to stalled applicants.
const ReminderMessage = "Your loan application is still in progress. Reply to your last question whenever you are ready to continue."

// Reminder nudges SMS applicants whose intake sessions have gone quiet.
// Each session is nudged at most once.
type Reminder struct {
	st      store.Store
	sender  messaging.Sender
	maxIdle time.Duration

	mu     sync.Mutex
	nudged map[string]bool
}

// NewReminder creates a reminder over the given store and sender. A maxIdle
// of zero falls back to DefaultMaxIdle.
func NewReminder(st store.Store, sender messaging.Sender, maxIdle time.Duration) *Reminder {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	return &Reminder{
		st:      st,
		sender:  sender,
		maxIdle: maxIdle,
		nudged:  make(map[string]bool),
	}
}

// Run scans channel bindings and sends one reminder per stalled session.
// Intended to be scheduled as a cron job.
func (r *Reminder) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bindings, err := r.st.ListChannelSessions()
	if err != nil {
		slog.Error("Reminder.Run: failed to list channel bindings", "error", err)
		return
	}

	cutoff := time.Now().Add(-r.maxIdle)
	for channel, sessionID := range bindings {
		if sessionID == "" || r.alreadyNudged(sessionID) {
			continue
		}
		state, err := r.st.GetSession(sessionID)
		if err != nil {
			slog.Error("Reminder.Run: failed to fetch session", "error", err, "session_id", sessionID)
			continue
		}
		if state == nil || state.Complete() || state.UpdatedAt.After(cutoff) {
			continue
		}
		if err := r.sender.SendMessage(ctx, channel, ReminderMessage); err != nil {
			slog.Error("Reminder.Run: failed to send reminder", "error", err, "channel", channel, "session_id", sessionID)
			continue
		}
		r.markNudged(sessionID)
		slog.Info("Reminder.Run: reminder sent", "channel", channel, "session_id", sessionID)
	}
}

func (r *Reminder) alreadyNudged(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nudged[sessionID]
}

func (r *Reminder) markNudged(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nudged[sessionID] = true
}
