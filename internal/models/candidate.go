package models

import (
	"time"
)

// Candidate is an external article offered to an admin for curation.
// Candidates are never stored.
type Candidate struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Author      string    `json:"author,omitempty"`
	Points      int       `json:"points"`
	Comments    int       `json:"comments"`
	Summary     string    `json:"summary,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
