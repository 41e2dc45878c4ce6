package views

import (
	"fmt"
	"strings"
)

// Granularity is one of the five calendar views.
type Granularity int

const (
	Day Granularity = iota
	ThreeDay
	Week
	Biweekly
	Month
)

var granularityNames = []string{"day", "3day", "week", "2week", "month"}

// aliases accepted in URLs and config.
var granularityAliases = map[string]Granularity{
	"day": Day, "1day": Day, "daily": Day,
	"3day": ThreeDay, "3days": ThreeDay, "three-day": ThreeDay,
	"week": Week, "1week": Week, "weekly": Week,
	"2week": Biweekly, "2weeks": Biweekly, "biweekly": Biweekly,
	"month": Month, "monthly": Month,
}

// All lists the granularities in display order.
func All() []Granularity {
	return []Granularity{Day, ThreeDay, Week, Biweekly, Month}
}

func (g Granularity) String() string {
	if g < Day || g > Month {
		return "unknown"
	}
	return granularityNames[g]
}

// Length is the fixed window length in days; 0 for the month grid.
func (g Granularity) Length() int {
	switch g {
	case Day:
		return 1
	case ThreeDay:
		return 3
	case Week:
		return 7
	case Biweekly:
		return 14
	default:
		return 0
	}
}

// Title is the human label used by hosts.
func (g Granularity) Title() string {
	switch g {
	case Day:
		return "Day"
	case ThreeDay:
		return "3 days"
	case Week:
		return "Week"
	case Biweekly:
		return "2 weeks"
	case Month:
		return "Month"
	default:
		return "?"
	}
}

// ParseGranularity accepts the canonical names and a few aliases.
func ParseGranularity(s string) (Granularity, error) {
	if g, ok := granularityAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g, nil
	}
	return Day, fmt.Errorf("views: unknown view %q", s)
}
