package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
)

// TemplateGenerator fills fixed templates. It never calls out and is used
// when no generation service is configured.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (TemplateGenerator) Name() string {
	return "template"
}

func (TemplateGenerator) Check(context.Context) error {
	return nil
}

var openers = map[string]string{
	ToneProfessional: "We are pleased to mark %s with you.",
	ToneCasual:       "%s is here!",
	ToneFriendly:     "Happy %s from all of us!",
}

var bodies = map[calendar.ContentType]string{
	calendar.ContentSocial: "Join the celebration and share how you are marking the day.",
	calendar.ContentEmail:  "As a thank you for being with us, we have prepared something special for the occasion. Open this email to find out more.",
	calendar.ContentBlog:   "In this post we look at what the day means, how people celebrate it, and how our community takes part.",
	calendar.ContentAd:     "Limited time only. Don't miss out.",
}

func (TemplateGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return "", fmt.Errorf("topic is required")
	}

	opener, ok := openers[req.Tone]
	if !ok {
		opener = openers[ToneProfessional]
	}
	body, ok := bodies[req.Type]
	if !ok {
		body = bodies[calendar.ContentSocial]
	}

	parts := []string{fmt.Sprintf(opener, topic)}
	switch req.Length {
	case LengthShort:
	case LengthLong:
		parts = append(parts, body, body)
	default:
		parts = append(parts, body)
	}
	if req.Type == calendar.ContentSocial {
		parts = append(parts, hashtag(topic))
	}
	return strings.Join(parts, " "), nil
}

func hashtag(topic string) string {
	var b strings.Builder
	b.WriteByte('#')
	for _, word := range strings.Fields(topic) {
		word = strings.Map(func(r rune) rune {
			if r == '\'' || r == '.' || r == ',' {
				return -1
			}
			return r
		}, word)
		b.WriteString(word)
	}
	return b.String()
}
