package automation

import (
	"strings"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
)

// RepresentsSpecialDate reports whether event already stands for tmpl on
// day: it starts on the same calendar day in loc and its title contains
// the template name. The title rule is loose on purpose so that events
// renamed by users are still recognized.
func RepresentsSpecialDate(event calendar.CalendarEvent, day time.Time, tmpl SpecialDate, loc *time.Location) bool {
	if !sameDay(event.StartDate.In(loc), day.In(loc)) {
		return false
	}
	return strings.Contains(event.Title, tmpl.Name)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
