package calendar

import (
	"io"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductID = "-//contentpilot//automation calendar//EN"

// defaultEventLength is used for events without an end date so that
// calendar clients render a visible block.
const defaultEventLength = time.Hour

// ExportICS writes events as an iCalendar feed, ordered by start date.
// Cancelled events are exported with STATUS:CANCELLED so subscribed
// clients drop them instead of keeping stale copies.
func ExportICS(w io.Writer, calendarName string, events []CalendarEvent) error {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	if calendarName != "" {
		cal.SetName(calendarName)
	}

	sorted := make([]CalendarEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	for _, e := range sorted {
		vevent := cal.AddEvent(e.ID + "@contentpilot")
		vevent.SetDtStampTime(e.CreatedAt.UTC())
		vevent.SetCreatedTime(e.CreatedAt.UTC())
		vevent.SetStartAt(e.StartDate.UTC())
		end := e.StartDate.Add(defaultEventLength)
		if e.EndDate != nil {
			end = *e.EndDate
		}
		vevent.SetEndAt(end.UTC())
		vevent.SetSummary(e.Title)
		if e.Description != "" {
			vevent.SetDescription(e.Description)
		}
		if e.Platform != "" {
			vevent.SetProperty(ics.ComponentPropertyCategories, e.Platform)
		}
		vevent.SetProperty(ics.ComponentPropertyStatus, icsStatus(e.Status))
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func icsStatus(s EventStatus) string {
	switch s {
	case StatusCancelled:
		return "CANCELLED"
	case StatusPending:
		return "TENTATIVE"
	default:
		return "CONFIRMED"
	}
}
