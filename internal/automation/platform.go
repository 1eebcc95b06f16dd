package automation

import (
	"strings"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
)

var platformContentTypes = map[string]calendar.ContentType{
	"facebook":   calendar.ContentSocial,
	"instagram":  calendar.ContentSocial,
	"twitter":    calendar.ContentSocial,
	"x":          calendar.ContentSocial,
	"linkedin":   calendar.ContentSocial,
	"tiktok":     calendar.ContentSocial,
	"threads":    calendar.ContentSocial,
	"email":      calendar.ContentEmail,
	"newsletter": calendar.ContentEmail,
	"mailchimp":  calendar.ContentEmail,
	"blog":       calendar.ContentBlog,
	"medium":     calendar.ContentBlog,
	"wordpress":  calendar.ContentBlog,
	"google ads": calendar.ContentAd,
	"meta ads":   calendar.ContentAd,
}

// ContentTypeForPlatform maps a platform name to the kind of copy it
// needs. Unknown or empty platforms get short-form social copy.
func ContentTypeForPlatform(platform string) calendar.ContentType {
	if t, ok := platformContentTypes[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return t
	}
	return calendar.ContentSocial
}
