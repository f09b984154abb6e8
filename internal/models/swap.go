package models

import "time"

// SwapPlanType enumerates the shapes a resolved swap can take.
type SwapPlanType string

const (
	SwapPlanDirect   SwapPlanType = "DIRECT"
	SwapPlanRotation SwapPlanType = "ROTATION"
	SwapPlanNone     SwapPlanType = "NONE"
)

// SwapStep is one leg of a rotation chain. Steps exist only inside a search
// result; nothing is persisted until the plan is committed.
type SwapStep struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	FromSection string `json:"from_section"`
	ToSection   string `json:"to_section"`
	IsRequester bool   `json:"is_requester"`
}

// SwapPartner identifies the counterpart of a direct swap.
type SwapPartner struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Section     string `json:"section"`
}

// SwapPlan is the outcome of a swap search. A rotation plan's step sequence
// departs the requester's current section and closes back into it; a NONE
// plan carries neither partner nor steps.
type SwapPlan struct {
	Type          SwapPlanType `json:"type"`
	TargetSection string       `json:"target_section,omitempty"`
	Partner       *SwapPartner `json:"partner,omitempty"`
	Steps         []SwapStep   `json:"steps,omitempty"`
}

// NoSwapPlan is the canonical "no match" result.
func NoSwapPlan() *SwapPlan {
	return &SwapPlan{Type: SwapPlanNone}
}

// SwapRecord is a committed swap persisted for history and auditing.
type SwapRecord struct {
	ID            string       `db:"id" json:"id"`
	PlanType      SwapPlanType `db:"plan_type" json:"plan_type"`
	RequesterID   string       `db:"requester_id" json:"requester_id"`
	TargetSection string       `db:"target_section" json:"target_section"`
	Steps         []byte       `db:"steps" json:"steps"`
	CommittedBy   string       `db:"committed_by" json:"committed_by"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// SwapRecordFilter constrains history listing queries.
type SwapRecordFilter struct {
	StudentID string
	Limit     int
	Offset    int
}
