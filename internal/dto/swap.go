package dto

import "github.com/noah-isme/section-swap-api/internal/models"

// FindSwapRequest asks the resolver for a plan. RequesterID defaults to the
// authenticated student; TargetSections defaults to the requester's own
// desired list, in stored priority order.
type FindSwapRequest struct {
	RequesterID    string   `json:"requester_id"`
	TargetSections []string `json:"target_sections"`
}

// CommitSwapRequest executes a plan previously returned by the resolver.
// The plan is re-verified against live data inside one transaction.
type CommitSwapRequest struct {
	RequesterID string          `json:"requester_id" validate:"required"`
	Plan        models.SwapPlan `json:"plan" validate:"required"`
}

// MatchFlags maps student IDs to whether any cheap match was found for them.
type MatchFlags map[string]bool

// MatchSummaryRow is one line of the annotated match listing used by the
// CSV/PDF exports.
type MatchSummaryRow struct {
	StudentID      string `json:"student_id"`
	NIS            string `json:"nis"`
	FullName       string `json:"full_name"`
	CurrentSection string `json:"current_section"`
	DesiredCount   int    `json:"desired_count"`
	HasMatch       bool   `json:"has_match"`
}
