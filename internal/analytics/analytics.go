// Package analytics records page-view events for deployed apps and
// aggregates them into per-app summaries.
package analytics

import (
	"sort"
	"time"
)

// Event is a single recorded page view.
type Event struct {
	App       string    `json:"app"`
	Path      string    `json:"path"`
	SessionID string    `json:"sid"`
	At        time.Time `json:"at"`
}

// PageCount is one entry of a summary's top-pages list.
type PageCount struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DayCount is one entry of a summary's per-day series.
type DayCount struct {
	Day   string `json:"day"`
	Views int    `json:"views"`
}

// Summary is the aggregated view of one app's events.
type Summary struct {
	TotalViews     int         `json:"totalViews"`
	UniqueSessions int         `json:"uniqueSessions"`
	TopPages       []PageCount `json:"topPages"`
	ViewsByHour    []int       `json:"viewsByHour"`
	ViewsByDay     []DayCount  `json:"viewsByDay"`
}

// Summarize aggregates events into a Summary relative to now. ViewsByHour
// covers the trailing 24 hours oldest-first, with the final bucket holding
// the current hour. ViewsByDay covers the trailing 7 days the same way.
func Summarize(events []Event, now time.Time) Summary {
	s := Summary{
		TotalViews:  len(events),
		ViewsByHour: make([]int, 24),
		ViewsByDay:  make([]DayCount, 7),
	}

	nowHour := now.Truncate(time.Hour)
	nowDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := range s.ViewsByDay {
		s.ViewsByDay[i].Day = nowDay.AddDate(0, 0, i-6).Format("2006-01-02")
	}

	sessions := make(map[string]struct{})
	pages := make(map[string]int)
	for _, ev := range events {
		if ev.SessionID != "" {
			sessions[ev.SessionID] = struct{}{}
		}
		pages[ev.Path]++

		hoursAgo := int(nowHour.Sub(ev.At.Truncate(time.Hour)) / time.Hour)
		if hoursAgo >= 0 && hoursAgo < 24 {
			s.ViewsByHour[23-hoursAgo]++
		}

		evDay := time.Date(ev.At.Year(), ev.At.Month(), ev.At.Day(), 0, 0, 0, 0, now.Location())
		daysAgo := int(nowDay.Sub(evDay).Hours() / 24)
		if daysAgo >= 0 && daysAgo < 7 {
			s.ViewsByDay[6-daysAgo].Views++
		}
	}
	s.UniqueSessions = len(sessions)

	for path, views := range pages {
		s.TopPages = append(s.TopPages, PageCount{Path: path, Views: views})
	}
	sort.Slice(s.TopPages, func(i, j int) bool {
		if s.TopPages[i].Views != s.TopPages[j].Views {
			return s.TopPages[i].Views > s.TopPages[j].Views
		}
		return s.TopPages[i].Path < s.TopPages[j].Path
	})
	if len(s.TopPages) > 10 {
		s.TopPages = s.TopPages[:10]
	}
	return s
}
