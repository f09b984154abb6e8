package dto

import "github.com/noah-isme/section-swap-api/internal/models"

// UpdatePreferencesRequest replaces a student's desired-section list. An
// empty list clears the preferences and removes the student from matching.
type UpdatePreferencesRequest struct {
	DesiredSections []string `json:"desired_sections" validate:"dive,required"`
}

// StudentItem decorates a student with the batch checker annotation for
// listing responses.
type StudentItem struct {
	models.Student
	HasMatch *bool `json:"has_match,omitempty"`
}
