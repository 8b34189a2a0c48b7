package services

import (
	serrors "errors"
	"fmt"
	"strings"
	"time"

	"freelance_market/internal/models/bid"
	"freelance_market/internal/models/project"
	"freelance_market/internal/storage"

	"github.com/google/uuid"
)

// ErrForbidden means the actor is not allowed to perform the transition:
// a freelancer touching someone else's bid, or a client deciding on a
// project they do not own.
var ErrForbidden = serrors.New("actor is not allowed to perform this action")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BidStore is the persistence contract of the lifecycle service. The
// decision methods are conditional on the bid still being pending and the
// accept cascade is atomic; both stores in internal/storage honor that.
type BidStore interface {
	SaveBid(b bid.Bid) (bid.Bid, error)
	FetchBid(bidId string) (bid.Bid, error)
	FetchProject(projectId string) (project.Project, error)
	HasPendingBid(projectId, freelancerId string) (bool, error)
	UpdatePendingBid(b bid.Bid) (bid.Bid, error)
	AcceptBid(bidId string, decidedAt time.Time, cascadeMessage string) (bid.Bid, error)
	RejectBid(bidId, clientMessage string, decidedAt time.Time) (bid.Bid, error)
	WithdrawBid(bidId string, at time.Time) (bid.Bid, error)
	ListProjectBids(projectId string, status bid.Status, limit, offset int) ([]bid.Bid, error)
	ListFreelancerBids(freelancerId string, status bid.Status, limit, offset int) ([]bid.Bid, error)
}

// BidService enforces the bid state machine: a bid starts pending, the
// owning client accepts or rejects it, the submitting freelancer may
// withdraw or amend it while pending, and accepting one bid rejects every
// other pending bid on the project. All terminal states are final.
type BidService struct {
	store BidStore
	now   func() time.Time
}

func NewBidService(store BidStore) *BidService {
	return &BidService{store: store, now: time.Now}
}

// Submit validates a draft and persists it as a pending bid.
func (s *BidService) Submit(req bid.BidRequest) (bid.Bid, error) {
	const op = "services.BidService.Submit"

	if err := validateDraft(req.Amount, req.ProposedDurationDays, req.CoverLetter); err != nil {
		return bid.Bid{}, err
	}

	hours := req.AvailabilityHoursPerWeek
	if hours == 0 {
		hours = bid.DefaultWeeklyHours
	}
	if hours < 1 || hours > bid.MaxWeeklyHours {
		return bid.Bid{}, &ValidationError{Field: "availabilityHoursPerWeek", Message: "must be between 1 and 168"}
	}

	now := s.now()
	if err := validateStartDate(req.StartDate, now); err != nil {
		return bid.Bid{}, err
	}

	for i, m := range req.Milestones {
		if strings.TrimSpace(m.Title) == "" {
			return bid.Bid{}, &ValidationError{Field: fmt.Sprintf("milestones[%d].title", i), Message: "must not be empty"}
		}
		if m.Amount <= 0 {
			return bid.Bid{}, &ValidationError{Field: fmt.Sprintf("milestones[%d].amount", i), Message: "must be positive"}
		}
	}

	if _, err := s.store.FetchProject(req.ProjectId); err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	pending, err := s.store.HasPendingBid(req.ProjectId, req.FreelancerId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if pending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrDuplicatePending)
	}

	saved, err := s.store.SaveBid(bid.Bid{
		Id:                       uuid.NewString(),
		ProjectId:                req.ProjectId,
		FreelancerId:             req.FreelancerId,
		Amount:                   req.Amount,
		ProposedDurationDays:     req.ProposedDurationDays,
		CoverLetter:              req.CoverLetter,
		AvailabilityHoursPerWeek: hours,
		StartDate:                req.StartDate,
		Milestones:               req.Milestones,
		Status:                   bid.StatusPending,
		CreatedAt:                now,
		UpdatedAt:                now,
	})
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

// Accept marks the bid accepted and cascades rejection to every other
// pending bid on the same project. Not idempotent: a bid that already left
// pending fails, even if it is the accepted one.
func (s *BidService) Accept(bidId, clientId string) (bid.Bid, error) {
	const op = "services.BidService.Accept"

	b, err := s.store.FetchBid(bidId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.authorizeClient(b.ProjectId, clientId); err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if b.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	accepted, err := s.store.AcceptBid(bidId, s.now(), bid.CascadeMessage)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return accepted, nil
}

// Reject marks the bid rejected, storing the client's message verbatim.
func (s *BidService) Reject(bidId, clientId, clientMessage string) (bid.Bid, error) {
	const op = "services.BidService.Reject"

	if len(clientMessage) > bid.MaxClientMessageLen {
		return bid.Bid{}, &ValidationError{Field: "clientMessage", Message: "must be at most 1000 characters"}
	}

	b, err := s.store.FetchBid(bidId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.authorizeClient(b.ProjectId, clientId); err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if b.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	rejected, err := s.store.RejectBid(bidId, clientMessage, s.now())
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return rejected, nil
}

// Withdraw lets the submitting freelancer pull a pending bid. No client
// decision is recorded, so ClientDecisionAt stays unset.
func (s *BidService) Withdraw(bidId, freelancerId string) (bid.Bid, error) {
	const op = "services.BidService.Withdraw"

	b, err := s.store.FetchBid(bidId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if b.FreelancerId != freelancerId {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if b.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	withdrawn, err := s.store.WithdrawBid(bidId, s.now())
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return withdrawn, nil
}

// Update amends the mutable fields of a pending bid. ProjectId,
// FreelancerId and Status never change here.
func (s *BidService) Update(bidId, freelancerId string, patch bid.BidPatchRequest) (bid.Bid, error) {
	const op = "services.BidService.Update"

	b, err := s.store.FetchBid(bidId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	if b.FreelancerId != freelancerId {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if b.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	if patch.Amount != nil {
		b.Amount = *patch.Amount
	}
	if patch.ProposedDurationDays != nil {
		b.ProposedDurationDays = *patch.ProposedDurationDays
	}
	if patch.CoverLetter != nil {
		b.CoverLetter = *patch.CoverLetter
	}
	if patch.AvailabilityHoursPerWeek != nil {
		if *patch.AvailabilityHoursPerWeek < 1 || *patch.AvailabilityHoursPerWeek > bid.MaxWeeklyHours {
			return bid.Bid{}, &ValidationError{Field: "availabilityHoursPerWeek", Message: "must be between 1 and 168"}
		}
		b.AvailabilityHoursPerWeek = *patch.AvailabilityHoursPerWeek
	}

	now := s.now()
	if patch.StartDate != nil {
		if err := validateStartDate(patch.StartDate, now); err != nil {
			return bid.Bid{}, err
		}
		b.StartDate = patch.StartDate
	}

	if err := validateDraft(b.Amount, b.ProposedDurationDays, b.CoverLetter); err != nil {
		return bid.Bid{}, err
	}

	b.UpdatedAt = now
	updated, err := s.store.UpdatePendingBid(b)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

// ProjectBids lists a project's bids, newest first.
func (s *BidService) ProjectBids(projectId string, status bid.Status, limit, offset int) ([]bid.Bid, error) {
	const op = "services.BidService.ProjectBids"

	if status != "" && !bid.ValidStatus(status) {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if err := validatePaging(limit, offset); err != nil {
		return nil, err
	}
	if _, err := s.store.FetchProject(projectId); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.store.ListProjectBids(projectId, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FreelancerBids lists a freelancer's bids across projects, newest first.
func (s *BidService) FreelancerBids(freelancerId string, status bid.Status, limit, offset int) ([]bid.Bid, error) {
	const op = "services.BidService.FreelancerBids"

	if status != "" && !bid.ValidStatus(status) {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if err := validatePaging(limit, offset); err != nil {
		return nil, err
	}

	result, err := s.store.ListFreelancerBids(freelancerId, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *BidService) BidStatus(bidId string) (bid.Status, error) {
	const op = "services.BidService.BidStatus"

	b, err := s.store.FetchBid(bidId)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return b.Status, nil
}

func (s *BidService) authorizeClient(projectId, clientId string) error {
	p, err := s.store.FetchProject(projectId)
	if err != nil {
		return err
	}
	if p.ClientId != clientId {
		return ErrForbidden
	}
	return nil
}

func validateDraft(amount float64, durationDays int, coverLetter string) error {
	if amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be positive"}
	}
	if durationDays <= 0 {
		return &ValidationError{Field: "proposedDurationDays", Message: "must be positive"}
	}
	if strings.TrimSpace(coverLetter) == "" {
		return &ValidationError{Field: "coverLetter", Message: "must not be empty"}
	}
	if len(coverLetter) > bid.MaxCoverLetterLen {
		return &ValidationError{Field: "coverLetter", Message: "must be at most 2000 characters"}
	}
	return nil
}

func validatePaging(limit, offset int) error {
	if limit < 0 {
		return &ValidationError{Field: "limit", Message: "must not be negative"}
	}
	if offset < 0 {
		return &ValidationError{Field: "offset", Message: "must not be negative"}
	}
	return nil
}

func validateStartDate(startDate *time.Time, now time.Time) error {
	if startDate == nil {
		return nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if startDate.Before(today) {
		return &ValidationError{Field: "startDate", Message: "must not be in the past"}
	}
	return nil
}
