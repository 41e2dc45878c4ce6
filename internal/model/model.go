package model

// DayLayout is the zero-padded calendar-day format used for event dates.
// Dates in this layout compare correctly as plain strings.
const DayLayout = "2006-01-02"

// Event is a single listing as supplied by the event collaborator.
// It is read-only for the calendar: nothing here mutates an Event.
type Event struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription,omitempty"`
	Description      string `json:"description,omitempty"`

	// StartDate / EndDate are local calendar days (YYYY-MM-DD). EndDate is
	// optional and defaults to StartDate.
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate,omitempty"`

	// StartTime / EndTime are display-only.
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`

	LocationCity    string `json:"locationCity,omitempty"`
	LocationName    string `json:"locationName,omitempty"`
	LocationCountry string `json:"locationCountry,omitempty"`

	EventType     string `json:"eventType,omitempty"`
	FeaturedImage string `json:"featuredImage,omitempty"`
	Slug          string `json:"slug"`
}

// Valid reports whether StartDate is a well-formed YYYY-MM-DD day.
// Invalid events occupy no days.
func (e Event) Valid() bool {
	return isDay(e.StartDate)
}

// LastDay returns the inclusive last day of the event. A missing or
// malformed EndDate, or one before StartDate, clamps to StartDate.
func (e Event) LastDay() string {
	if e.EndDate == "" || !isDay(e.EndDate) || e.EndDate < e.StartDate {
		return e.StartDate
	}
	return e.EndDate
}

// OnDay reports whether the event covers the given YYYY-MM-DD day.
func (e Event) OnDay(day string) bool {
	if !e.Valid() {
		return false
	}
	return day >= e.StartDate && day <= e.LastDay()
}

// Path is the navigation target of the event's detail page.
func (e Event) Path() string {
	return "/events/" + e.Slug
}

// Location returns the most specific location label available.
func (e Event) Location() string {
	switch {
	case e.LocationName != "" && e.LocationCity != "":
		return e.LocationName + ", " + e.LocationCity
	case e.LocationName != "":
		return e.LocationName
	default:
		return e.LocationCity
	}
}

// isDay checks the YYYY-MM-DD shape without allocating a time.Time.
func isDay(s string) bool {
	if len(s) != len(DayLayout) || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	month := (s[5]-'0')*10 + (s[6] - '0')
	day := (s[8]-'0')*10 + (s[9] - '0')
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}
