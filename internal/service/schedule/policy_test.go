package schedule

import (
	"testing"
	"time"

	"github.com/bellasuite/notify/internal/config"
)

func testPolicy(t *testing.T, cfg config.QuietHoursConfig) *Policy {
	t.Helper()
	p, err := NewPolicy(cfg)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return p
}

func overnightConfig() config.QuietHoursConfig {
	return config.QuietHoursConfig{
		Start:            "21:00",
		End:              "08:00",
		Timezone:         "America/New_York",
		ShortWindowHours: 4,
		ShortWindowMode:  ShortWindowSend,
	}
}

func TestResolvePassThroughOutsideWindow(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 15, 14, 0, 0, 0, ny)
	res := p.Resolve(desired, "", nil)
	if res.Delayed || res.Skip {
		t.Fatalf("expected pass-through, got %+v", res)
	}
	if !res.SendAt.Equal(desired) {
		t.Errorf("SendAt changed: %v != %v", res.SendAt, desired)
	}
}

func TestResolveEveningDefersToNextMorning(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 15, 23, 30, 0, 0, ny)
	res := p.Resolve(desired, "America/New_York", nil)
	if !res.Delayed {
		t.Fatal("expected deferral")
	}
	want := time.Date(2026, 6, 16, 8, 0, 0, 0, ny)
	if !res.SendAt.Equal(want) {
		t.Errorf("SendAt = %v, want %v", res.SendAt, want)
	}
}

func TestResolveEarlyMorningDefersSameDay(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 16, 6, 0, 0, 0, ny)
	res := p.Resolve(desired, "America/New_York", nil)
	want := time.Date(2026, 6, 16, 8, 0, 0, 0, ny)
	if !res.Delayed || !res.SendAt.Equal(want) {
		t.Errorf("got %+v, want SendAt %v", res, want)
	}
}

func TestResolveSameDayWindow(t *testing.T) {
	cfg := overnightConfig()
	cfg.Start = "12:00"
	cfg.End = "14:00"
	p := testPolicy(t, cfg)
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 16, 13, 0, 0, 0, ny)
	res := p.Resolve(desired, "", nil)
	want := time.Date(2026, 6, 16, 14, 0, 0, 0, ny)
	if !res.Delayed || !res.SendAt.Equal(want) {
		t.Errorf("got %+v, want SendAt %v", res, want)
	}

	// Outside the same-day window.
	res = p.Resolve(time.Date(2026, 6, 16, 15, 0, 0, 0, ny), "", nil)
	if res.Delayed {
		t.Error("15:00 should be outside a 12:00-14:00 window")
	}
}

func TestResolveAcrossDSTFallBack(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	// Clocks fall back between this evening and the next morning, so
	// the civil gap of 8h30m is 9h30m of real time.
	desired := time.Date(2026, 10, 31, 23, 30, 0, 0, ny)
	res := p.Resolve(desired, "America/New_York", nil)
	want := time.Date(2026, 11, 1, 8, 0, 0, 0, ny)
	if !res.SendAt.Equal(want) {
		t.Fatalf("SendAt = %v, want %v", res.SendAt, want)
	}
	if got := res.SendAt.Sub(desired); got != 9*time.Hour+30*time.Minute {
		t.Errorf("elapsed = %v, want 9h30m across the fall-back transition", got)
	}
}

func TestResolveIdempotent(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	first := p.Resolve(time.Date(2026, 6, 15, 23, 30, 0, 0, ny), "America/New_York", nil)
	second := p.Resolve(first.SendAt, "America/New_York", nil)
	if second.Delayed {
		t.Error("resolving an already-resolved time should not defer again")
	}
	if !second.SendAt.Equal(first.SendAt) {
		t.Errorf("SendAt moved on re-resolve: %v != %v", second.SendAt, first.SendAt)
	}
}

func TestResolveShortWindowSendsThrough(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 15, 23, 30, 0, 0, ny)
	deadline := desired.Add(2 * time.Hour)
	res := p.Resolve(desired, "America/New_York", &deadline)
	if res.Delayed || res.Skip {
		t.Fatalf("expected send-through, got %+v", res)
	}
	if !res.SendAt.Equal(desired) {
		t.Errorf("SendAt changed: %v", res.SendAt)
	}
}

func TestResolveShortWindowSkipMode(t *testing.T) {
	cfg := overnightConfig()
	cfg.ShortWindowMode = ShortWindowSkip
	p := testPolicy(t, cfg)
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 15, 23, 30, 0, 0, ny)
	deadline := desired.Add(2 * time.Hour)
	res := p.Resolve(desired, "America/New_York", &deadline)
	if !res.Skip {
		t.Fatalf("expected skip, got %+v", res)
	}
}

func TestResolveFarDeadlineStillDefers(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 15, 23, 30, 0, 0, ny)
	deadline := desired.Add(48 * time.Hour)
	res := p.Resolve(desired, "America/New_York", &deadline)
	if !res.Delayed {
		t.Errorf("far deadline should not bypass quiet hours, got %+v", res)
	}
}

func TestResolveUnknownTimezoneFallsBack(t *testing.T) {
	p := testPolicy(t, overnightConfig())
	ny, _ := time.LoadLocation("America/New_York")

	desired := time.Date(2026, 6, 15, 23, 30, 0, 0, ny)
	res := p.Resolve(desired, "Not/AZone", nil)
	want := time.Date(2026, 6, 16, 8, 0, 0, 0, ny)
	if !res.SendAt.Equal(want) {
		t.Errorf("fallback zone SendAt = %v, want %v", res.SendAt, want)
	}
}

func TestNewPolicyValidation(t *testing.T) {
	bad := []config.QuietHoursConfig{
		{Start: "25:00", End: "08:00", Timezone: "UTC"},
		{Start: "21:00", End: "8", Timezone: "UTC"},
		{Start: "21:00", End: "21:00", Timezone: "UTC"},
		{Start: "21:00", End: "08:00", Timezone: "Mars/Olympus"},
	}
	for _, cfg := range bad {
		if _, err := NewPolicy(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
