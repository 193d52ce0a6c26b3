package template

import (
	"strings"
	"testing"
	"time"

	"github.com/bellasuite/notify/internal/domain"
)

func TestRenderEmailReminder(t *testing.T) {
	r := NewRenderer()
	starts := time.Date(2026, 3, 16, 15, 30, 0, 0, time.UTC)

	out, err := r.Render(domain.ChannelAppointmentReminder, domain.TypeEmail, map[string]interface{}{
		"first_name":   "Maya",
		"service_name": "balayage",
		"salon_name":   "Bella Studio",
		"salon_phone":  "+15551234567",
		"staff_name":   "Ines",
		"starts_at":    starts,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if !strings.Contains(out.Subject, "balayage") {
		t.Errorf("subject missing service name: %q", out.Subject)
	}
	if !strings.Contains(out.Subject, "Monday, Mar 16") {
		t.Errorf("subject missing formatted date: %q", out.Subject)
	}
	if !strings.Contains(out.Body, "Hi Maya") {
		t.Errorf("body missing greeting: %q", out.Body)
	}
	if !strings.Contains(out.Body, "3:30 PM") {
		t.Errorf("body missing formatted time: %q", out.Body)
	}
	if !strings.Contains(out.Body, "with Ines") {
		t.Errorf("body missing staff name: %q", out.Body)
	}
	if !strings.Contains(out.Body, "(555) 123-4567") {
		t.Errorf("body missing formatted phone: %q", out.Body)
	}
}

func TestRenderSMSHasNoSubject(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(domain.ChannelAppointmentReminder, domain.TypeSMS, map[string]interface{}{
		"salon_name": "Bella Studio",
		"starts_at":  time.Date(2026, 3, 16, 15, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out.Subject != "" {
		t.Errorf("expected empty subject for SMS, got %q", out.Subject)
	}
	if !strings.Contains(out.Body, "Reply STOP to opt out") {
		t.Errorf("SMS body missing opt-out notice: %q", out.Body)
	}
}

func TestRenderDefaultsMissingFields(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render(domain.ChannelAppointmentReminder, domain.TypeEmail, map[string]interface{}{
		"salon_name": "Bella Studio",
		"starts_at":  time.Date(2026, 3, 16, 15, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out.Body, "Hi there") {
		t.Errorf("missing first_name should fall back to greeting: %q", out.Body)
	}
	if !strings.Contains(out.Subject, "appointment") {
		t.Errorf("missing service_name should fall back: %q", out.Subject)
	}
	// Conditional staff block should be omitted entirely
	if strings.Contains(out.Body, "with ") {
		t.Errorf("staff clause should be absent: %q", out.Body)
	}
}

func TestRenderUnknownChannelType(t *testing.T) {
	r := NewRenderer()
	_, err := r.Render(domain.Channel("no_such_channel"), domain.TypeEmail, nil)
	if err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestRenderAllBuiltinTemplates(t *testing.T) {
	r := NewRenderer()
	data := map[string]interface{}{
		"first_name":   "Maya",
		"service_name": "manicure",
		"salon_name":   "Bella Studio",
		"salon_phone":  "5551234567",
		"starts_at":    time.Now().Add(48 * time.Hour),
		"promo_body":   "Spring special: 20% off color.",
		"review_url":   "https://g.page/bella/review",
	}
	channels := []domain.Channel{
		domain.ChannelAppointmentReminder,
		domain.ChannelAppointmentConfirmation,
		domain.ChannelAppointmentCancelled,
		domain.ChannelReviewRequest,
		domain.ChannelMarketingPromo,
	}
	for _, ch := range channels {
		for _, typ := range []domain.NotificationType{domain.TypeEmail, domain.TypeSMS} {
			out, err := r.Render(ch, typ, data)
			if err != nil {
				t.Errorf("%s/%s: %v", ch, typ, err)
				continue
			}
			if out.Body == "" {
				t.Errorf("%s/%s: empty body", ch, typ)
			}
			if typ == domain.TypeEmail && out.Subject == "" {
				t.Errorf("%s/%s: empty subject", ch, typ)
			}
		}
	}
}

func TestRenderString(t *testing.T) {
	r := NewRenderer()
	out, err := r.RenderString(`Hello {{ name | capitalize }}`, map[string]interface{}{"name": "maya"})
	if err != nil {
		t.Fatalf("render string: %v", err)
	}
	if out != "Hello Maya" {
		t.Errorf("got %q", out)
	}
}

func TestTimeUntilFilter(t *testing.T) {
	r := NewRenderer()
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Now().Add(30 * time.Minute), "30 minutes"},
		{time.Now().Add(3*time.Hour + time.Minute), "3 hours"},
		{time.Now().Add(49 * time.Hour), "2 days"},
		{time.Now().Add(-time.Hour), "now"},
	}
	for _, c := range cases {
		out, err := r.RenderString(`{{ t | time_until }}`, map[string]interface{}{"t": c.in})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != c.want {
			t.Errorf("time_until(%v) = %q, want %q", c.in, out, c.want)
		}
	}
}

func TestPhoneDisplayFilter(t *testing.T) {
	r := NewRenderer()
	cases := map[string]string{
		"+15551234567": "(555) 123-4567",
		"5551234567":   "(555) 123-4567",
		"555-123-4567": "(555) 123-4567",
		"12345":        "12345", // not a 10-digit number, passed through
	}
	for in, want := range cases {
		out, err := r.RenderString(`{{ p | phone_display }}`, map[string]interface{}{"p": in})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != want {
			t.Errorf("phone_display(%q) = %q, want %q", in, out, want)
		}
	}
}
