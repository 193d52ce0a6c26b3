// Package template renders notification subjects and bodies from
// structured appointment data using the Liquid template language.
// Rendering is a pure function of (channel, type, data); the renderer
// holds no mutable state beyond a compiled-template cache.
package template

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/osteele/liquid"

	"github.com/bellasuite/notify/internal/domain"
)

// Rendered is the output of a render call.
type Rendered struct {
	Subject string `json:"subject,omitempty"` // empty for SMS
	Body    string `json:"body"`
}

// Renderer compiles and renders Liquid templates with caching.
type Renderer struct {
	engine    *liquid.Engine
	cache     sync.Map // map[string]*liquid.Template
	templates map[templateKey]messageTemplate
}

type templateKey struct {
	channel domain.Channel
	typ     domain.NotificationType
}

type messageTemplate struct {
	subject string
	body    string
}

// NewRenderer creates a renderer with the built-in salon templates and
// custom filters registered.
func NewRenderer() *Renderer {
	r := &Renderer{
		engine:    liquid.NewEngine(),
		templates: defaultTemplates(),
	}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// Default value: {{ first_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ name | capitalize }}
	r.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + s[1:]
	})

	// Civil date: {{ starts_at | appt_date }} → "Monday, Jan 2"
	r.engine.RegisterFilter("appt_date", func(value interface{}) string {
		t, ok := asTime(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return t.Format("Monday, Jan 2")
	})

	// Civil time: {{ starts_at | appt_time }} → "3:04 PM"
	r.engine.RegisterFilter("appt_time", func(value interface{}) string {
		t, ok := asTime(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return t.Format("3:04 PM")
	})

	// Human delta: {{ starts_at | time_until }} → "3 hours"
	r.engine.RegisterFilter("time_until", func(value interface{}) string {
		t, ok := asTime(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		d := time.Until(t)
		switch {
		case d < 0:
			return "now"
		case d < time.Hour:
			mins := int(d.Minutes())
			if mins <= 1 {
				return "a few minutes"
			}
			return fmt.Sprintf("%d minutes", mins)
		case d < 24*time.Hour:
			hrs := int(d.Hours())
			if hrs == 1 {
				return "1 hour"
			}
			return fmt.Sprintf("%d hours", hrs)
		default:
			days := int(d.Hours() / 24)
			if days == 1 {
				return "1 day"
			}
			return fmt.Sprintf("%d days", days)
		}
	})

	// Display phone: {{ phone | phone_display }} → "(555) 123-4567"
	r.engine.RegisterFilter("phone_display", func(s string) string {
		digits := strings.Map(func(c rune) rune {
			if c >= '0' && c <= '9' {
				return c
			}
			return -1
		}, s)
		if len(digits) == 11 && digits[0] == '1' {
			digits = digits[1:]
		}
		if len(digits) != 10 {
			return s
		}
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	})
}

func asTime(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

// Render produces the subject and body for a channel/type pair. Unknown
// channel/type combinations return an error; template render errors
// return the error so the caller can dead-letter rather than send a
// half-rendered message.
func (r *Renderer) Render(channel domain.Channel, typ domain.NotificationType, data map[string]interface{}) (*Rendered, error) {
	tpl, ok := r.templates[templateKey{channel, typ}]
	if !ok {
		return nil, fmt.Errorf("no template for channel %q type %q", channel, typ)
	}

	body, err := r.renderCached(string(channel)+":"+string(typ)+":body", tpl.body, data)
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	out := &Rendered{Body: body}
	if typ == domain.TypeEmail {
		subject, err := r.renderCached(string(channel)+":"+string(typ)+":subject", tpl.subject, data)
		if err != nil {
			return nil, fmt.Errorf("render subject: %w", err)
		}
		out.Subject = subject
	}
	return out, nil
}

// RenderString renders an ad-hoc template (admin previews, custom
// overrides) without caching.
func (r *Renderer) RenderString(templateStr string, data map[string]interface{}) (string, error) {
	return r.engine.ParseAndRenderString(templateStr, data)
}

func (r *Renderer) renderCached(cacheKey, templateStr string, data map[string]interface{}) (string, error) {
	if cached, ok := r.cache.Load(cacheKey); ok {
		return cached.(*liquid.Template).RenderString(data)
	}
	tpl, err := r.engine.ParseString(templateStr)
	if err != nil {
		return "", err
	}
	r.cache.Store(cacheKey, tpl)
	return tpl.RenderString(data)
}

func defaultTemplates() map[templateKey]messageTemplate {
	return map[templateKey]messageTemplate{
		{domain.ChannelAppointmentReminder, domain.TypeEmail}: {
			subject: `Reminder: your {{ service_name | default: "appointment" }} {{ starts_at | appt_date }}`,
			body: `Hi {{ first_name | default: "there" }},

This is a reminder for your {{ service_name | default: "appointment" }} at {{ salon_name }} on {{ starts_at | appt_date }} at {{ starts_at | appt_time }}{% if staff_name %} with {{ staff_name }}{% endif %}.

Need to reschedule? Call us at {{ salon_phone | phone_display }}.

See you soon,
{{ salon_name }}`,
		},
		{domain.ChannelAppointmentReminder, domain.TypeSMS}: {
			body: `{{ salon_name }}: reminder for your {{ service_name | default: "appointment" }} on {{ starts_at | appt_date }} at {{ starts_at | appt_time }}. Reply STOP to opt out.`,
		},
		{domain.ChannelAppointmentConfirmation, domain.TypeEmail}: {
			subject: `You're booked: {{ service_name | default: "appointment" }} on {{ starts_at | appt_date }}`,
			body: `Hi {{ first_name | default: "there" }},

Your {{ service_name | default: "appointment" }} at {{ salon_name }} is confirmed for {{ starts_at | appt_date }} at {{ starts_at | appt_time }}{% if staff_name %} with {{ staff_name }}{% endif %}.

{{ salon_name }}`,
		},
		{domain.ChannelAppointmentConfirmation, domain.TypeSMS}: {
			body: `{{ salon_name }}: you're booked for {{ starts_at | appt_date }} at {{ starts_at | appt_time }}. Reply STOP to opt out.`,
		},
		{domain.ChannelAppointmentCancelled, domain.TypeEmail}: {
			subject: `Your appointment on {{ starts_at | appt_date }} was cancelled`,
			body: `Hi {{ first_name | default: "there" }},

Your {{ service_name | default: "appointment" }} at {{ salon_name }} on {{ starts_at | appt_date }} has been cancelled.{% if cancel_note %}

{{ cancel_note }}{% endif %}

{{ salon_name }}`,
		},
		{domain.ChannelAppointmentCancelled, domain.TypeSMS}: {
			body: `{{ salon_name }}: your appointment on {{ starts_at | appt_date }} at {{ starts_at | appt_time }} was cancelled.`,
		},
		{domain.ChannelReviewRequest, domain.TypeEmail}: {
			subject: `How was your visit to {{ salon_name }}?`,
			body: `Hi {{ first_name | default: "there" }},

Thanks for visiting {{ salon_name }}! We'd love to hear how it went{% if review_url %}: {{ review_url }}{% endif %}.

{{ salon_name }}`,
		},
		{domain.ChannelReviewRequest, domain.TypeSMS}: {
			body: `{{ salon_name }}: thanks for visiting! Leave us a review{% if review_url %}: {{ review_url }}{% endif %}`,
		},
		{domain.ChannelMarketingPromo, domain.TypeEmail}: {
			subject: `{{ promo_subject | default: "News from" }} {{ salon_name }}`,
			body: `Hi {{ first_name | default: "there" }},

{{ promo_body }}

{{ salon_name }}`,
		},
		{domain.ChannelMarketingPromo, domain.TypeSMS}: {
			body: `{{ salon_name }}: {{ promo_body }} Reply STOP to opt out.`,
		},
	}
}
