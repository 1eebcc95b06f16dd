package automation

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// PlatformAll marks a template meant for every channel. The scheduler
// maps it to its default platform.
const PlatformAll = "All"

// SpecialDate is a recurring marketing moment keyed by month and day.
type SpecialDate struct {
	Key         string `json:"date" yaml:"date"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Platform    string `json:"platform" yaml:"platform"`
}

// Occurrence is a special date resolved to a concrete day.
type Occurrence struct {
	SpecialDate
	Date time.Time `json:"on"`
}

var defaultSpecialDates = []SpecialDate{
	{"01-01", "New Year's Day", "Kick off the year with a fresh campaign and resolutions-themed offers.", PlatformAll},
	{"02-14", "Valentine's Day", "Gift guides and romance-themed promotions.", "Instagram"},
	{"03-17", "St. Patrick's Day", "Lucky deals and green-themed content.", "Facebook"},
	{"04-22", "Earth Day", "Highlight sustainability efforts and eco-friendly products.", "LinkedIn"},
	{"07-04", "Independence Day", "Celebrate with patriotic promotions and summer sales.", "Facebook"},
	{"10-31", "Halloween", "Spooky promotions and costume contests.", "Instagram"},
	{"11-11", "Singles' Day", "The largest online shopping day; flash sales and bundles.", PlatformAll},
	{"11-29", "Black Friday", "Doorbuster deals and limited-time discounts.", PlatformAll},
	{"12-02", "Cyber Monday", "Online-only deals and free shipping offers.", "Email"},
	{"12-24", "Christmas Eve", "Last-minute gift ideas and holiday greetings.", "Facebook"},
	{"12-25", "Christmas Day", "Holiday greetings and thank-you messages to customers.", PlatformAll},
	{"12-31", "New Year's Eve", "Year-in-review highlights and countdown content.", "Instagram"},
}

// Catalog maps MM-DD keys to special-date templates. Safe for concurrent
// use; the last registration for a key wins.
type Catalog struct {
	mu    sync.RWMutex
	dates map[string]SpecialDate
}

// NewCatalog returns a catalog seeded with widely recognized dates.
func NewCatalog() *Catalog {
	c := NewEmptyCatalog()
	for _, d := range defaultSpecialDates {
		c.dates[d.Key] = d
	}
	return c
}

// NewEmptyCatalog returns a catalog with no templates.
func NewEmptyCatalog() *Catalog {
	return &Catalog{dates: make(map[string]SpecialDate)}
}

// Register inserts or overwrites the template for key.
func (c *Catalog) Register(key, name, description, platform string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dates[key] = SpecialDate{Key: key, Name: name, Description: description, Platform: platform}
}

func (c *Catalog) Lookup(key string) (SpecialDate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dates[key]
	return d, ok
}

// Entries returns every template ordered by key.
func (c *Catalog) Entries() []SpecialDate {
	c.mu.RLock()
	out := make([]SpecialDate, 0, len(c.dates))
	for _, d := range c.dates {
		out = append(out, d)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Upcoming lists every occurrence within [from, from+days] by expanding
// each template as a yearly rule. Feb 29 only occurs in leap years.
func (c *Catalog) Upcoming(from time.Time, days int) ([]Occurrence, error) {
	if days < 0 {
		days = 0
	}
	loc := from.Location()
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, days+1).Add(-time.Nanosecond)

	var out []Occurrence
	for _, d := range c.Entries() {
		month, day, err := ParseDateKey(d.Key)
		if err != nil {
			continue
		}
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:       rrule.YEARLY,
			Dtstart:    time.Date(start.Year()-1, month, 1, 0, 0, 0, 0, loc),
			Bymonth:    []int{int(month)},
			Bymonthday: []int{day},
		})
		if err != nil {
			return nil, fmt.Errorf("expand %s: %w", d.Key, err)
		}
		for _, t := range rule.Between(start, end, true) {
			out = append(out, Occurrence{SpecialDate: d, Date: t})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// DateKey formats the MM-DD catalog key of t in its own location.
func DateKey(t time.Time) string {
	return fmt.Sprintf("%02d-%02d", int(t.Month()), t.Day())
}

// ParseDateKey validates a MM-DD key. 02-29 is accepted.
func ParseDateKey(key string) (time.Month, int, error) {
	// 2024 is a leap year, so every real month/day round-trips
	t, err := time.Parse("2006-01-02", "2024-"+key)
	if err != nil || len(key) != 5 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDateKey, key)
	}
	return t.Month(), t.Day(), nil
}

type specialDatesFile struct {
	SpecialDates []SpecialDate `yaml:"specialDates"`
}

// LoadSpecialDatesFile reads organization-specific dates from a YAML file
// of the form:
//
//	specialDates:
//	  - date: "03-08"
//	    name: Company Anniversary
//	    description: Celebrate another year
//	    platform: LinkedIn
func LoadSpecialDatesFile(path string) ([]SpecialDate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read special dates file: %w", err)
	}

	var f specialDatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse special dates file %s: %w", path, err)
	}
	return f.SpecialDates, nil
}
