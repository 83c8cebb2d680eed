// Package schedule runs jobs at fixed wall-clock times in a time zone.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	errInvalidSlot = errors.New("invalid schedule time")
	errNoSlots     = errors.New("schedule has no times")
)

// Slot is a wall-clock time of day.
type Slot struct {
	Hour   int
	Minute int
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// ParseSlot parses "HH:MM" in 24 hour form.
func ParseSlot(s string) (Slot, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Slot{}, fmt.Errorf("%w: %q", errInvalidSlot, s)
	}

	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Slot{}, fmt.Errorf("%w: %q", errInvalidSlot, s)
	}

	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return Slot{}, fmt.Errorf("%w: %q", errInvalidSlot, s)
	}

	return Slot{Hour: hour, Minute: minute}, nil
}

// Schedule is a sorted set of daily slots in one location.
type Schedule struct {
	slots []Slot
	loc   *time.Location
}

// New parses times ("17:05") into a schedule evaluated in loc.
func New(times []string, loc *time.Location) (*Schedule, error) {
	if len(times) == 0 {
		return nil, errNoSlots
	}

	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[Slot]bool, len(times))
	slots := make([]Slot, 0, len(times))

	for _, t := range times {
		slot, err := ParseSlot(t)
		if err != nil {
			return nil, err
		}

		if !seen[slot] {
			seen[slot] = true
			slots = append(slots, slot)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Hour != slots[j].Hour {
			return slots[i].Hour < slots[j].Hour
		}

		return slots[i].Minute < slots[j].Minute
	})

	return &Schedule{slots: slots, loc: loc}, nil
}

// Slots returns the daily slots in order.
func (s *Schedule) Slots() []Slot {
	return append([]Slot(nil), s.slots...)
}

// Location is the zone slots are evaluated in.
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// Next returns the first slot strictly after t.
func (s *Schedule) Next(t time.Time) time.Time {
	local := t.In(s.loc)

	for day := 0; day <= 2; day++ {
		y, m, d := local.Date()

		for _, slot := range s.slots {
			at := time.Date(y, m, d+day, slot.Hour, slot.Minute, 0, 0, s.loc)
			if at.After(t) {
				return at
			}
		}
	}

	// Unreachable with at least one slot.
	return t
}

// Upcoming returns the next n slot times after t.
func (s *Schedule) Upcoming(t time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)

	for range n {
		t = s.Next(t)
		out = append(out, t)
	}

	return out
}

// Job is executed at each slot with the scheduled time.
type Job func(ctx context.Context, at time.Time) error

// Options configures a Runner. Now and After default to the real clock.
type Options struct {
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// Runner fires a job at every slot of a schedule until its context ends.
type Runner struct {
	log   logrus.FieldLogger
	sched *Schedule
	job   Job
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewRunner creates a runner for sched.
func NewRunner(log logrus.FieldLogger, sched *Schedule, job Job, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.After == nil {
		opts.After = time.After
	}

	return &Runner{
		log:   log.WithField("component", "schedule"),
		sched: sched,
		job:   job,
		now:   opts.Now,
		after: opts.After,
	}
}

// Run blocks, running the job at each slot. A failing job is logged and the
// runner waits for the next slot. It returns the context error on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := r.now()
		next := r.sched.Next(now)
		wait := next.Sub(now)

		r.log.WithFields(logrus.Fields{
			"next": next.Format("2006-01-02 15:04 MST"),
			"in":   wait.Round(time.Second).String(),
		}).Info("Waiting for next scheduled run")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.after(wait):
		}

		log := r.log.WithField("slot", next.Format("15:04"))
		log.Info("Starting scheduled run")

		if err := r.job(ctx, next); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			log.WithError(err).Error("Scheduled run failed")

			continue
		}

		log.Info("Scheduled run complete")
	}
}
