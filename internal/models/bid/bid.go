package bid

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusWithdrawn:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusWithdrawn
}

// CascadeMessage is stored on sibling bids that get rejected when another
// bid on the same project is accepted. It is system-generated; a
// client-authored message only ever arrives through an explicit reject.
const CascadeMessage = "Another bid was accepted for this project"

const (
	MaxCoverLetterLen   = 2000
	MaxClientMessageLen = 1000
	MaxWeeklyHours      = 168
	DefaultWeeklyHours  = 40
	AssistMinWords      = 10
)

type Milestone struct {
	Title       string     `json:"title" validate:"required"`
	Amount      float64    `json:"amount" validate:"gt=0"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

type Bid struct {
	Id                       string      `json:"id"`
	ProjectId                string      `json:"projectId"`
	FreelancerId             string      `json:"freelancerId"`
	Amount                   float64     `json:"amount"`
	ProposedDurationDays     int         `json:"proposedDurationDays"`
	CoverLetter              string      `json:"coverLetter"`
	AvailabilityHoursPerWeek int         `json:"availabilityHoursPerWeek"`
	StartDate                *time.Time  `json:"startDate,omitempty"`
	Milestones               []Milestone `json:"milestones,omitempty"`
	Status                   Status      `json:"status"`
	ClientMessage            string      `json:"clientMessage,omitempty"`
	ClientDecisionAt         *time.Time  `json:"clientDecisionAt,omitempty"`
	CreatedAt                time.Time   `json:"createdAt"`
	UpdatedAt                time.Time   `json:"updatedAt"`
}

type BidRequest struct {
	ProjectId                string      `json:"projectId" validate:"required"`
	FreelancerId             string      `json:"freelancerId" validate:"required"`
	Amount                   float64     `json:"amount" validate:"gt=0"`
	ProposedDurationDays     int         `json:"proposedDurationDays" validate:"gt=0"`
	CoverLetter              string      `json:"coverLetter" validate:"required,max=2000"`
	AvailabilityHoursPerWeek int         `json:"availabilityHoursPerWeek" validate:"omitempty,min=1,max=168"`
	StartDate                *time.Time  `json:"startDate,omitempty"`
	Milestones               []Milestone `json:"milestones,omitempty" validate:"omitempty,dive"`
}

type BidPatchRequest struct {
	Amount                   *float64   `json:"amount,omitempty"`
	ProposedDurationDays     *int       `json:"proposedDurationDays,omitempty"`
	CoverLetter              *string    `json:"coverLetter,omitempty"`
	StartDate                *time.Time `json:"startDate,omitempty"`
	AvailabilityHoursPerWeek *int       `json:"availabilityHoursPerWeek,omitempty"`
}

type BidRejectRequest struct {
	ClientMessage string `json:"clientMessage" validate:"max=1000"`
}

// AssistEligible reports whether a cover letter is long enough to hand to
// the AI rewrite collaborator: at least AssistMinWords whitespace-separated
// words. The assistant itself lives outside this service; this is its
// input contract, published here for the callers that front it.
func AssistEligible(coverLetter string) bool {
	return len(strings.Fields(coverLetter)) >= AssistMinWords
}
