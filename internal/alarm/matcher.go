// Package alarm holds the per-minute due check: a pure matcher over the
// schedule snapshot and the timer loop that drives it.
package alarm

import (
	"time"

	"github.com/DainoJung/brawl-star/internal/models"
)

// weekdayLabels maps time.Weekday to the one-character Korean labels
// the frontend stores in a medicine's days field.
var weekdayLabels = map[time.Weekday]string{
	time.Sunday:    "일",
	time.Monday:    "월",
	time.Tuesday:   "화",
	time.Wednesday: "수",
	time.Thursday:  "목",
	time.Friday:    "금",
	time.Saturday:  "토",
}

// WeekdayLabel returns the Korean label for at's weekday in at's
// location.
func WeekdayLabel(at time.Time) string {
	return weekdayLabels[at.Weekday()]
}

// Match selects the entries due at the given instant and groups them by
// owning user, preserving the order entries arrived in. An entry is due
// when its times contain at's HH:MM and its days are empty (every day)
// or contain at's weekday. at must already be in the deployment
// timezone; Match never consults the system clock or locale.
//
// Entries without a user id cannot be delivered anywhere and are
// skipped.
func Match(entries []models.Medicine, at time.Time) map[string][]models.Medicine {
	currentTime := at.Format("15:04")
	currentDay := WeekdayLabel(at)

	due := make(map[string][]models.Medicine)
	for _, entry := range entries {
		if entry.UserID == "" {
			continue
		}
		if !contains(entry.Times, currentTime) {
			continue
		}
		if len(entry.Days) > 0 && !contains(entry.Days, currentDay) {
			continue
		}
		due[entry.UserID] = append(due[entry.UserID], entry)
	}
	return due
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
