package models

import "time"

// Student represents a learner registered in the institution together with
// their current section placement and ranked swap preferences.
type Student struct {
	ID             string `db:"id" json:"id"`
	NIS            string `db:"nis" json:"nis"`
	FullName       string `db:"full_name" json:"full_name"`
	Email          string `db:"email" json:"email"`
	Phone          string `db:"phone" json:"phone"`
	Batch          string `db:"batch" json:"batch"`
	CurrentSection string `db:"current_section" json:"current_section"`
	// DesiredSections is priority ordered; the order is preserved through
	// storage and serialization.
	DesiredSections []string  `db:"-" json:"desired_sections"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Cohort returns the explicit batch tag, falling back to the enrollment year
// encoded in the first two digits of the NIS.
func (s *Student) Cohort() string {
	if s.Batch != "" {
		return s.Batch
	}
	if len(s.NIS) >= 2 {
		return "20" + s.NIS[:2]
	}
	return ""
}

// WantsSection reports whether section appears in the desired list.
func (s *Student) WantsSection(section string) bool {
	for _, want := range s.DesiredSections {
		if want == section {
			return true
		}
	}
	return false
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Batch     string
	Section   string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
