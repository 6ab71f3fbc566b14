package model

import (
	"fmt"
	"time"
)

// TargetYear is the audience a job listing is aimed at.
type TargetYear string

const (
	Year1st      TargetYear = "1st"
	Year2nd      TargetYear = "2nd"
	Year3rd      TargetYear = "3rd"
	YearFinal    TargetYear = "final"
	YearFreshers TargetYear = "freshers"
)

// TargetYears lists every valid category in display order.
var TargetYears = []TargetYear{Year1st, Year2nd, Year3rd, YearFinal, YearFreshers}

// ParseTargetYear validates a category string.
func ParseTargetYear(s string) (TargetYear, error) {
	for _, y := range TargetYears {
		if string(y) == s {
			return y, nil
		}
	}
	return "", fmt.Errorf("unknown target year %q", s)
}

// JobListing is stored at jobOpportunities/{id}. Listings are never edited.
type JobListing struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	TargetYear  TargetYear `json:"targetYear"`
	PostedBy    string     `json:"postedBy"`
	AuthorName  string     `json:"author"`
	CreatedAt   time.Time  `json:"createdAt"`
}
