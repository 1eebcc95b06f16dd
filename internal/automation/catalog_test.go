package automation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contentpilot/contentpilot-backend/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogSeeded(t *testing.T) {
	c := NewCatalog()

	d, ok := c.Lookup("07-04")
	require.True(t, ok)
	assert.Equal(t, "Independence Day", d.Name)
	assert.Equal(t, "Facebook", d.Platform)

	d, ok = c.Lookup("12-25")
	require.True(t, ok)
	assert.Equal(t, PlatformAll, d.Platform)

	_, ok = c.Lookup("06-15")
	assert.False(t, ok)

	entries := c.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "01-01", entries[0].Key)
	assert.Equal(t, "12-31", entries[len(entries)-1].Key)
}

func TestCatalogRegisterOverwrites(t *testing.T) {
	c := NewCatalog()
	c.Register("07-04", "Fourth of July BBQ", "Grill season", "Instagram")
	c.Register("03-08", "Company Anniversary", "Another year", "LinkedIn")

	d, ok := c.Lookup("07-04")
	require.True(t, ok)
	assert.Equal(t, "Fourth of July BBQ", d.Name)
	assert.Equal(t, "Instagram", d.Platform)

	d, ok = c.Lookup("03-08")
	require.True(t, ok)
	assert.Equal(t, "03-08", d.Key)
}

func TestDateKeys(t *testing.T) {
	assert.Equal(t, "01-05", DateKey(time.Date(2025, 1, 5, 23, 0, 0, 0, time.UTC)))

	testCases := []struct {
		key   string
		valid bool
	}{
		{"02-29", true},
		{"12-31", true},
		{"02-30", false},
		{"13-01", false},
		{"1-1", false},
		{"", false},
		{"01-01x", false},
	}
	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			_, _, err := ParseDateKey(tc.key)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidDateKey)
			}
		})
	}
}

func TestCatalogUpcomingAcrossYearBoundary(t *testing.T) {
	c := NewCatalog()
	from := time.Date(2025, 12, 20, 15, 30, 0, 0, time.UTC)

	occ, err := c.Upcoming(from, 14)
	require.NoError(t, err)

	var keys []string
	for _, o := range occ {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"12-24", "12-25", "12-31", "01-01"}, keys)
	assert.Equal(t, 2026, occ[3].Date.Year())
	assert.Equal(t, time.December, occ[0].Date.Month())
}

func TestCatalogUpcomingLeapDay(t *testing.T) {
	c := NewEmptyCatalog()
	c.Register("02-29", "Leap Day", "", "")

	occ, err := c.Upcoming(time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC), 14)
	require.NoError(t, err)
	assert.Empty(t, occ)

	occ, err = c.Upcoming(time.Date(2028, 2, 20, 0, 0, 0, 0, time.UTC), 14)
	require.NoError(t, err)
	require.Len(t, occ, 1)
	assert.Equal(t, 29, occ[0].Date.Day())
}

func TestLoadSpecialDatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dates.yaml")
	data := `specialDates:
  - date: "03-08"
    name: Company Anniversary
    description: Celebrate another year
    platform: LinkedIn
  - date: "09-15"
    name: Product Launch Day
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	dates, err := LoadSpecialDatesFile(path)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "Company Anniversary", dates[0].Name)
	assert.Equal(t, "LinkedIn", dates[0].Platform)
	assert.Equal(t, "09-15", dates[1].Key)

	_, err = LoadSpecialDatesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRepresentsSpecialDate(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	day := time.Date(2025, 7, 4, 0, 0, 0, 0, loc)
	tmpl := SpecialDate{Key: "07-04", Name: "Independence Day"}

	testCases := []struct {
		name  string
		event calendar.CalendarEvent
		want  bool
	}{
		{"exact", calendar.CalendarEvent{Title: "Independence Day", StartDate: time.Date(2025, 7, 4, 9, 0, 0, 0, loc)}, true},
		{"edited title", calendar.CalendarEvent{Title: "Independence Day Mega Sale", StartDate: time.Date(2025, 7, 4, 18, 0, 0, 0, loc)}, true},
		{"renamed", calendar.CalendarEvent{Title: "Fourth of July", StartDate: time.Date(2025, 7, 4, 9, 0, 0, 0, loc)}, false},
		{"other day", calendar.CalendarEvent{Title: "Independence Day", StartDate: time.Date(2025, 7, 5, 9, 0, 0, 0, loc)}, false},
		{"other year", calendar.CalendarEvent{Title: "Independence Day", StartDate: time.Date(2024, 7, 4, 9, 0, 0, 0, loc)}, false},
		// 02:00 UTC on July 5 is still July 4 in EST
		{"location aware", calendar.CalendarEvent{Title: "Independence Day", StartDate: time.Date(2025, 7, 5, 2, 0, 0, 0, time.UTC)}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RepresentsSpecialDate(tc.event, day, tmpl, loc))
		})
	}
}

func TestContentTypeForPlatform(t *testing.T) {
	testCases := map[string]calendar.ContentType{
		"Facebook":   calendar.ContentSocial,
		"instagram":  calendar.ContentSocial,
		" X ":        calendar.ContentSocial,
		"Email":      calendar.ContentEmail,
		"Newsletter": calendar.ContentEmail,
		"WordPress":  calendar.ContentBlog,
		"Google Ads": calendar.ContentAd,
		"":           calendar.ContentSocial,
		"Pigeon":     calendar.ContentSocial,
	}
	for platform, want := range testCases {
		assert.Equal(t, want, ContentTypeForPlatform(platform), "platform %q", platform)
	}
}
