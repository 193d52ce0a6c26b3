package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bellasuite/notify/internal/config"
)

// Short-window modes. "send" lets a near-deadline notification through
// quiet hours; "skip" drops it instead.
const (
	ShortWindowSend = "send"
	ShortWindowSkip = "skip"
)

// Resolution is the outcome of resolving a desired send time against
// the quiet-hours policy.
type Resolution struct {
	SendAt  time.Time
	Delayed bool
	Skip    bool
	Reason  string
}

// Policy holds the quiet-hours window and short-window deadline rules.
// A Policy is safe for concurrent use.
type Policy struct {
	startMin    int // minutes after local midnight
	endMin      int
	defaultLoc  *time.Location
	shortWindow time.Duration
	shortMode   string
}

// NewPolicy builds a Policy from configuration. The window bounds and
// the default timezone are validated up front so resolution never has
// to re-parse them.
func NewPolicy(cfg config.QuietHoursConfig) (*Policy, error) {
	startMin, err := parseClock(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	endMin, err := parseClock(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("quiet hours end: %w", err)
	}
	if startMin == endMin {
		return nil, fmt.Errorf("quiet hours window is empty (%s-%s)", cfg.Start, cfg.End)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quiet hours timezone %q: %w", cfg.Timezone, err)
	}
	mode := cfg.ShortWindowMode
	if mode != ShortWindowSend && mode != ShortWindowSkip {
		mode = ShortWindowSend
	}
	return &Policy{
		startMin:    startMin,
		endMin:      endMin,
		defaultLoc:  loc,
		shortWindow: time.Duration(cfg.ShortWindowHours) * time.Hour,
		shortMode:   mode,
	}, nil
}

// Resolve converts desired into an allowed send time in the given IANA
// timezone. An empty or unknown timezone falls back to the policy
// default rather than failing the whole enqueue. deadline, when set, is
// the real-world event the notification is about (the appointment
// start); it drives the short-window rule.
//
// Resolution is idempotent: a time outside the quiet window comes back
// unchanged, and a time already at the window end is outside it.
func (p *Policy) Resolve(desired time.Time, timezone string, deadline *time.Time) Resolution {
	loc := p.location(timezone)
	local := desired.In(loc)
	civilMin := local.Hour()*60 + local.Minute()

	if !p.inWindow(civilMin) {
		return Resolution{SendAt: desired}
	}

	if deadline != nil && p.shortWindow > 0 && deadline.Sub(desired) < p.shortWindow {
		if p.shortMode == ShortWindowSkip {
			return Resolution{
				SendAt: desired,
				Skip:   true,
				Reason: "inside quiet hours with deadline too close to defer",
			}
		}
		return Resolution{
			SendAt: desired,
			Reason: "deadline too close to defer, sending through quiet hours",
		}
	}

	// Re-anchor the window end as a civil time on the resolved date so
	// the UTC offset is the one in effect at that date, not at desired.
	endDay := local
	if p.overnight() && civilMin >= p.startMin {
		endDay = local.AddDate(0, 0, 1)
	}
	sendAt := time.Date(endDay.Year(), endDay.Month(), endDay.Day(),
		p.endMin/60, p.endMin%60, 0, 0, loc)

	return Resolution{
		SendAt:  sendAt,
		Delayed: true,
		Reason:  "deferred past quiet hours",
	}
}

func (p *Policy) overnight() bool {
	return p.startMin > p.endMin
}

func (p *Policy) inWindow(civilMin int) bool {
	if p.overnight() {
		return civilMin >= p.startMin || civilMin < p.endMin
	}
	return civilMin >= p.startMin && civilMin < p.endMin
}

func (p *Policy) location(name string) *time.Location {
	if name == "" {
		return p.defaultLoc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return p.defaultLoc
	}
	return loc
}

// parseClock parses "HH:MM" into minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}
