package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"freelance_market/internal/models/bid"
	"freelance_market/internal/models/project"
	"freelance_market/internal/storage"
)

// Storage is an in-process bid store with the same conditional-write
// semantics as the Postgres one. Every mutation runs under the write lock,
// so the accept cascade is atomic and a decision cannot race an update or
// withdraw on the same bid.
type Storage struct {
	mu       sync.RWMutex
	bids     map[string]bid.Bid
	projects map[string]project.Project
}

func New() *Storage {
	return &Storage{
		bids:     make(map[string]bid.Bid),
		projects: make(map[string]project.Project),
	}
}

// AddProject seeds the project read contract, which is owned by the
// project subsystem in production.
func (s *Storage) AddProject(p project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.Id] = p
}

func cloneBid(b bid.Bid) bid.Bid {
	out := b
	if b.Milestones != nil {
		out.Milestones = make([]bid.Milestone, len(b.Milestones))
		copy(out.Milestones, b.Milestones)
	}
	if b.StartDate != nil {
		t := *b.StartDate
		out.StartDate = &t
	}
	if b.ClientDecisionAt != nil {
		t := *b.ClientDecisionAt
		out.ClientDecisionAt = &t
	}
	return out
}

func (s *Storage) SaveBid(b bid.Bid) (bid.Bid, error) {
	const op = "storage.memory.SaveBid"

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bids {
		if existing.ProjectId == b.ProjectId && existing.FreelancerId == b.FreelancerId && existing.Status == bid.StatusPending {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrDuplicatePending)
		}
	}

	s.bids[b.Id] = cloneBid(b)
	return cloneBid(b), nil
}

func (s *Storage) FetchBid(bidId string) (bid.Bid, error) {
	const op = "storage.memory.FetchBid"

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bids[bidId]
	if !ok {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
	}
	return cloneBid(b), nil
}

func (s *Storage) FetchProject(projectId string) (project.Project, error) {
	const op = "storage.memory.FetchProject"

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectId]
	if !ok {
		return project.Project{}, fmt.Errorf("%s: %w", op, storage.ErrProjectNotFound)
	}
	return p, nil
}

func (s *Storage) HasPendingBid(projectId, freelancerId string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bids {
		if b.ProjectId == projectId && b.FreelancerId == freelancerId && b.Status == bid.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Storage) UpdatePendingBid(b bid.Bid) (bid.Bid, error) {
	const op = "storage.memory.UpdatePendingBid"

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bids[b.Id]
	if !ok {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
	}
	if current.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	current.Amount = b.Amount
	current.ProposedDurationDays = b.ProposedDurationDays
	current.CoverLetter = b.CoverLetter
	current.AvailabilityHoursPerWeek = b.AvailabilityHoursPerWeek
	current.StartDate = b.StartDate
	current.UpdatedAt = b.UpdatedAt

	s.bids[current.Id] = cloneBid(current)
	return cloneBid(current), nil
}

func (s *Storage) RejectBid(bidId, clientMessage string, decidedAt time.Time) (bid.Bid, error) {
	const op = "storage.memory.RejectBid"

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bids[bidId]
	if !ok {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
	}
	if current.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	current.Status = bid.StatusRejected
	current.ClientMessage = clientMessage
	current.ClientDecisionAt = &decidedAt
	current.UpdatedAt = decidedAt

	s.bids[current.Id] = cloneBid(current)
	return cloneBid(current), nil
}

func (s *Storage) WithdrawBid(bidId string, at time.Time) (bid.Bid, error) {
	const op = "storage.memory.WithdrawBid"

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.bids[bidId]
	if !ok {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
	}
	if current.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	current.Status = bid.StatusWithdrawn
	current.UpdatedAt = at

	s.bids[current.Id] = cloneBid(current)
	return cloneBid(current), nil
}

func (s *Storage) AcceptBid(bidId string, decidedAt time.Time, cascadeMessage string) (bid.Bid, error) {
	const op = "storage.memory.AcceptBid"

	s.mu.Lock()
	defer s.mu.Unlock()

	winner, ok := s.bids[bidId]
	if !ok {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
	}
	if winner.Status != bid.StatusPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	winner.Status = bid.StatusAccepted
	winner.ClientDecisionAt = &decidedAt
	winner.UpdatedAt = decidedAt
	s.bids[winner.Id] = cloneBid(winner)

	for id, sibling := range s.bids {
		if id == bidId || sibling.ProjectId != winner.ProjectId || sibling.Status != bid.StatusPending {
			continue
		}
		sibling.Status = bid.StatusRejected
		sibling.ClientMessage = cascadeMessage
		sibling.ClientDecisionAt = &decidedAt
		sibling.UpdatedAt = decidedAt
		s.bids[id] = cloneBid(sibling)
	}

	return cloneBid(winner), nil
}

func (s *Storage) ListProjectBids(projectId string, status bid.Status, limit, offset int) ([]bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(func(b bid.Bid) bool {
		return b.ProjectId == projectId && (status == "" || b.Status == status)
	}, limit, offset), nil
}

func (s *Storage) ListFreelancerBids(freelancerId string, status bid.Status, limit, offset int) ([]bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(func(b bid.Bid) bool {
		return b.FreelancerId == freelancerId && (status == "" || b.Status == status)
	}, limit, offset), nil
}

func (s *Storage) list(match func(bid.Bid) bool, limit, offset int) []bid.Bid {
	// Negative paging values are rejected upstream; treat them as zero so a
	// direct caller cannot slice out of range.
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	result := make([]bid.Bid, 0)
	for _, b := range s.bids {
		if match(b) {
			result = append(result, cloneBid(b))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Id < result[j].Id
	})

	if offset >= len(result) {
		return []bid.Bid{}
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result
}
