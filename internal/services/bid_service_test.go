package services

import (
	serrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"freelance_market/internal/models/bid"
	"freelance_market/internal/models/project"
	"freelance_market/internal/storage"
	"freelance_market/internal/storage/memory"
)

func newTestService() (*BidService, *memory.Storage) {
	store := memory.New()
	store.AddProject(project.Project{Id: "p1", ClientId: "client-1", Title: "Landing page", Budget: 1500})
	store.AddProject(project.Project{Id: "p2", ClientId: "client-2", Title: "Mobile app", Budget: 8000})
	return NewBidService(store), store
}

func draft(projectId, freelancerId string) bid.BidRequest {
	return bid.BidRequest{
		ProjectId:            projectId,
		FreelancerId:         freelancerId,
		Amount:               500,
		ProposedDurationDays: 10,
		CoverLetter:          "I have shipped a dozen landing pages and can start right away.",
	}
}

func TestSubmit(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Submit(draft("p1", "f1"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if b.Id == "" {
		t.Error("Submit() returned empty id")
	}
	if b.Status != bid.StatusPending {
		t.Errorf("Status = %q, want %q", b.Status, bid.StatusPending)
	}
	if b.AvailabilityHoursPerWeek != bid.DefaultWeeklyHours {
		t.Errorf("AvailabilityHoursPerWeek = %d, want default %d", b.AvailabilityHoursPerWeek, bid.DefaultWeeklyHours)
	}
	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("Submit() left timestamps unset")
	}
	if b.ClientDecisionAt != nil || b.ClientMessage != "" {
		t.Error("Submit() set client decision fields on a pending bid")
	}
}

func TestSubmitValidation(t *testing.T) {
	yesterday := time.Now().AddDate(0, 0, -1)

	tests := []struct {
		name   string
		mutate func(*bid.BidRequest)
		field  string
	}{
		{"zero amount", func(r *bid.BidRequest) { r.Amount = 0 }, "amount"},
		{"negative amount", func(r *bid.BidRequest) { r.Amount = -5 }, "amount"},
		{"zero duration", func(r *bid.BidRequest) { r.ProposedDurationDays = 0 }, "proposedDurationDays"},
		{"negative duration", func(r *bid.BidRequest) { r.ProposedDurationDays = -3 }, "proposedDurationDays"},
		{"missing cover letter", func(r *bid.BidRequest) { r.CoverLetter = "" }, "coverLetter"},
		{"blank cover letter", func(r *bid.BidRequest) { r.CoverLetter = "   " }, "coverLetter"},
		{"oversized cover letter", func(r *bid.BidRequest) {
			for len(r.CoverLetter) <= bid.MaxCoverLetterLen {
				r.CoverLetter += " more detail"
			}
		}, "coverLetter"},
		{"availability too high", func(r *bid.BidRequest) { r.AvailabilityHoursPerWeek = 200 }, "availabilityHoursPerWeek"},
		{"availability negative", func(r *bid.BidRequest) { r.AvailabilityHoursPerWeek = -1 }, "availabilityHoursPerWeek"},
		{"past start date", func(r *bid.BidRequest) { r.StartDate = &yesterday }, "startDate"},
		{"milestone without title", func(r *bid.BidRequest) {
			r.Milestones = []bid.Milestone{{Title: "", Amount: 100}}
		}, "milestones[0].title"},
		{"milestone with zero amount", func(r *bid.BidRequest) {
			r.Milestones = []bid.Milestone{{Title: "Design", Amount: 0}}
		}, "milestones[0].amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			req := draft("p1", "f1")
			tt.mutate(&req)

			_, err := svc.Submit(req)
			var vErr *ValidationError
			if !serrors.As(err, &vErr) {
				t.Fatalf("Submit() error = %v, want ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", vErr.Field, tt.field)
			}

			left, err := svc.FreelancerBids("f1", "", 5, 0)
			if err != nil {
				t.Fatalf("FreelancerBids() error: %v", err)
			}
			if len(left) != 0 {
				t.Errorf("invalid submit created %d record(s)", len(left))
			}
		})
	}
}

func TestSubmitUnknownProject(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Submit(draft("missing", "f1"))
	if !serrors.Is(err, storage.ErrProjectNotFound) {
		t.Errorf("Submit() error = %v, want ErrProjectNotFound", err)
	}
}

func TestSubmitDuplicatePending(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.Submit(draft("p1", "f1"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if _, err := svc.Submit(draft("p1", "f1")); !serrors.Is(err, storage.ErrDuplicatePending) {
		t.Errorf("second Submit() error = %v, want ErrDuplicatePending", err)
	}

	// Another freelancer on the same project is fine, as is the same
	// freelancer on another project.
	if _, err := svc.Submit(draft("p1", "f2")); err != nil {
		t.Errorf("Submit() by other freelancer error: %v", err)
	}
	if _, err := svc.Submit(draft("p2", "f1")); err != nil {
		t.Errorf("Submit() on other project error: %v", err)
	}

	// Once the open bid is withdrawn, resubmitting is allowed.
	if _, err := svc.Withdraw(first.Id, "f1"); err != nil {
		t.Fatalf("Withdraw() error: %v", err)
	}
	if _, err := svc.Submit(draft("p1", "f1")); err != nil {
		t.Errorf("resubmit after withdraw error: %v", err)
	}
}

func TestAcceptCascade(t *testing.T) {
	svc, _ := newTestService()

	a, _ := svc.Submit(draft("p1", "f1"))
	b, _ := svc.Submit(draft("p1", "f2"))
	c, _ := svc.Submit(draft("p1", "f3"))

	accepted, err := svc.Accept(b.Id, "client-1")
	if err != nil {
		t.Fatalf("Accept() error: %v", err)
	}
	if accepted.Status != bid.StatusAccepted {
		t.Errorf("winner Status = %q, want %q", accepted.Status, bid.StatusAccepted)
	}
	if accepted.ClientDecisionAt == nil {
		t.Error("winner ClientDecisionAt not set")
	}

	for _, loserId := range []string{a.Id, c.Id} {
		loser, err := svc.store.FetchBid(loserId)
		if err != nil {
			t.Fatalf("FetchBid(%s) error: %v", loserId, err)
		}
		if loser.Status != bid.StatusRejected {
			t.Errorf("sibling Status = %q, want %q", loser.Status, bid.StatusRejected)
		}
		if loser.ClientMessage != bid.CascadeMessage {
			t.Errorf("sibling ClientMessage = %q, want %q", loser.ClientMessage, bid.CascadeMessage)
		}
		if loser.ClientDecisionAt == nil {
			t.Error("sibling ClientDecisionAt not set")
		}
	}

	// The project already has a winner; the cascaded bid cannot be accepted.
	if _, err := svc.Accept(a.Id, "client-1"); !serrors.Is(err, storage.ErrNotPending) {
		t.Errorf("Accept() after cascade error = %v, want ErrNotPending", err)
	}
	// Accepting the winner again is not idempotent either.
	if _, err := svc.Accept(b.Id, "client-1"); !serrors.Is(err, storage.ErrNotPending) {
		t.Errorf("re-Accept() error = %v, want ErrNotPending", err)
	}
}

func TestAcceptLeavesSettledSiblingsAlone(t *testing.T) {
	svc, _ := newTestService()

	a, _ := svc.Submit(draft("p1", "f1"))
	b, _ := svc.Submit(draft("p1", "f2"))
	w, _ := svc.Submit(draft("p1", "f3"))

	rejected, err := svc.Reject(a.Id, "client-1", "Budget too low")
	if err != nil {
		t.Fatalf("Reject() error: %v", err)
	}
	if _, err := svc.Withdraw(w.Id, "f3"); err != nil {
		t.Fatalf("Withdraw() error: %v", err)
	}

	if _, err := svc.Accept(b.Id, "client-1"); err != nil {
		t.Fatalf("Accept() error: %v", err)
	}

	after, _ := svc.store.FetchBid(a.Id)
	if after.ClientMessage != "Budget too low" {
		t.Errorf("earlier rejection message overwritten: %q", after.ClientMessage)
	}
	if !after.ClientDecisionAt.Equal(*rejected.ClientDecisionAt) {
		t.Error("earlier rejection timestamp overwritten by cascade")
	}

	withdrawn, _ := svc.store.FetchBid(w.Id)
	if withdrawn.Status != bid.StatusWithdrawn {
		t.Errorf("withdrawn sibling Status = %q, want %q", withdrawn.Status, bid.StatusWithdrawn)
	}
	if withdrawn.ClientMessage != "" || withdrawn.ClientDecisionAt != nil {
		t.Error("cascade touched a withdrawn sibling")
	}
}

func TestAcceptAuthorization(t *testing.T) {
	svc, _ := newTestService()

	b, _ := svc.Submit(draft("p1", "f1"))

	if _, err := svc.Accept(b.Id, "client-2"); !serrors.Is(err, ErrForbidden) {
		t.Errorf("Accept() by non-owner error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Accept("missing", "client-1"); !serrors.Is(err, storage.ErrBidNotFound) {
		t.Errorf("Accept() on unknown bid error = %v, want ErrBidNotFound", err)
	}

	after, _ := svc.store.FetchBid(b.Id)
	if after.Status != bid.StatusPending {
		t.Errorf("failed accept changed status to %q", after.Status)
	}
}

func TestReject(t *testing.T) {
	svc, _ := newTestService()

	b, _ := svc.Submit(draft("p1", "f1"))

	rejected, err := svc.Reject(b.Id, "client-1", "Budget too low")
	if err != nil {
		t.Fatalf("Reject() error: %v", err)
	}
	if rejected.Status != bid.StatusRejected {
		t.Errorf("Status = %q, want %q", rejected.Status, bid.StatusRejected)
	}
	if rejected.ClientMessage != "Budget too low" {
		t.Errorf("ClientMessage = %q, want %q", rejected.ClientMessage, "Budget too low")
	}
	if rejected.ClientDecisionAt == nil {
		t.Error("ClientDecisionAt not set")
	}

	if _, err := svc.Reject(b.Id, "client-1", "again"); !serrors.Is(err, storage.ErrNotPending) {
		t.Errorf("Reject() on rejected bid error = %v, want ErrNotPending", err)
	}
}

func TestRejectValidation(t *testing.T) {
	svc, _ := newTestService()

	b, _ := svc.Submit(draft("p1", "f1"))

	long := ""
	for len(long) <= bid.MaxClientMessageLen {
		long += "too long "
	}
	_, err := svc.Reject(b.Id, "client-1", long)
	var vErr *ValidationError
	if !serrors.As(err, &vErr) {
		t.Fatalf("Reject() error = %v, want ValidationError", err)
	}

	if _, err := svc.Reject(b.Id, "client-2", ""); !serrors.Is(err, ErrForbidden) {
		t.Errorf("Reject() by non-owner error = %v, want ErrForbidden", err)
	}
}

func TestWithdraw(t *testing.T) {
	svc, _ := newTestService()

	b, _ := svc.Submit(draft("p1", "f1"))

	if _, err := svc.Withdraw(b.Id, "f2"); !serrors.Is(err, ErrForbidden) {
		t.Errorf("Withdraw() by other freelancer error = %v, want ErrForbidden", err)
	}

	withdrawn, err := svc.Withdraw(b.Id, "f1")
	if err != nil {
		t.Fatalf("Withdraw() error: %v", err)
	}
	if withdrawn.Status != bid.StatusWithdrawn {
		t.Errorf("Status = %q, want %q", withdrawn.Status, bid.StatusWithdrawn)
	}
	if withdrawn.ClientDecisionAt != nil {
		t.Error("Withdraw() recorded a client decision timestamp")
	}

	// A withdrawn bid cannot be accepted afterwards.
	if _, err := svc.Accept(b.Id, "client-1"); !serrors.Is(err, storage.ErrNotPending) {
		t.Errorf("Accept() on withdrawn bid error = %v, want ErrNotPending", err)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService()

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }

	b, err := svc.Submit(draft("p1", "f1"))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	t1 := t0.Add(2 * time.Hour)
	svc.now = func() time.Time { return t1 }

	amount := 600.0
	updated, err := svc.Update(b.Id, "f1", bid.BidPatchRequest{Amount: &amount})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Amount != 600 {
		t.Errorf("Amount = %v, want 600", updated.Amount)
	}
	if updated.Status != bid.StatusPending {
		t.Errorf("Status = %q, want %q", updated.Status, bid.StatusPending)
	}
	if updated.ProjectId != b.ProjectId || updated.FreelancerId != b.FreelancerId {
		t.Error("Update() mutated immutable identity fields")
	}
	if !updated.UpdatedAt.Equal(t1) {
		t.Errorf("UpdatedAt = %v, want %v", updated.UpdatedAt, t1)
	}
	if !updated.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want unchanged %v", updated.CreatedAt, t0)
	}
}

func TestUpdateGuards(t *testing.T) {
	svc, _ := newTestService()

	b, _ := svc.Submit(draft("p1", "f1"))
	amount := 600.0

	if _, err := svc.Update(b.Id, "f2", bid.BidPatchRequest{Amount: &amount}); !serrors.Is(err, ErrForbidden) {
		t.Errorf("Update() by other freelancer error = %v, want ErrForbidden", err)
	}

	bad := -10.0
	_, err := svc.Update(b.Id, "f1", bid.BidPatchRequest{Amount: &bad})
	var vErr *ValidationError
	if !serrors.As(err, &vErr) {
		t.Errorf("Update() with negative amount error = %v, want ValidationError", err)
	}

	if _, err := svc.Reject(b.Id, "client-1", ""); err != nil {
		t.Fatalf("Reject() error: %v", err)
	}
	if _, err := svc.Update(b.Id, "f1", bid.BidPatchRequest{Amount: &amount}); !serrors.Is(err, storage.ErrNotPending) {
		t.Errorf("Update() on rejected bid error = %v, want ErrNotPending", err)
	}
}

func TestConcurrentAccept(t *testing.T) {
	svc, _ := newTestService()

	a, _ := svc.Submit(draft("p1", "f1"))
	b, _ := svc.Submit(draft("p1", "f2"))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.Id, b.Id} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.Accept(id, "client-1")
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case serrors.Is(err, storage.ErrNotPending):
			lost++
		default:
			t.Errorf("unexpected Accept() error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("concurrent accepts: %d won, %d lost, want exactly 1 each", won, lost)
	}

	accepted, err := svc.ProjectBids("p1", bid.StatusAccepted, 10, 0)
	if err != nil {
		t.Fatalf("ProjectBids() error: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("project has %d accepted bids, want 1", len(accepted))
	}
}

func TestQueries(t *testing.T) {
	svc, _ := newTestService()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		if _, err := svc.Submit(draft("p1", fmt.Sprintf("f%d", i))); err != nil {
			t.Fatalf("Submit() error: %v", err)
		}
	}

	all, err := svc.ProjectBids("p1", "", 10, 0)
	if err != nil {
		t.Fatalf("ProjectBids() error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("ProjectBids() returned %d bids, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Error("ProjectBids() not ordered by createdAt descending")
		}
	}

	page, err := svc.ProjectBids("p1", "", 2, 1)
	if err != nil {
		t.Fatalf("ProjectBids() error: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("paged ProjectBids() returned %d bids, want 2", len(page))
	}
	if page[0].Id != all[1].Id {
		t.Error("offset did not skip the newest bid")
	}

	mine, err := svc.FreelancerBids("f2", "", 10, 0)
	if err != nil {
		t.Fatalf("FreelancerBids() error: %v", err)
	}
	if len(mine) != 1 || mine[0].FreelancerId != "f2" {
		t.Errorf("FreelancerBids() = %v, want the single f2 bid", mine)
	}

	if _, err := svc.ProjectBids("missing", "", 5, 0); !serrors.Is(err, storage.ErrProjectNotFound) {
		t.Errorf("ProjectBids() on unknown project error = %v, want ErrProjectNotFound", err)
	}
	if _, err := svc.ProjectBids("p1", "bogus", 5, 0); err == nil {
		t.Error("ProjectBids() accepted an unknown status filter")
	}

	pending, err := svc.ProjectBids("p1", bid.StatusPending, 10, 0)
	if err != nil {
		t.Fatalf("ProjectBids() error: %v", err)
	}
	if len(pending) != 4 {
		t.Errorf("status filter returned %d bids, want 4", len(pending))
	}
}

func TestQueriesPagingValidation(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Submit(draft("p1", "f1")); err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	tests := []struct {
		name   string
		limit  int
		offset int
		field  string
	}{
		{"negative limit", -1, 0, "limit"},
		{"negative offset", 5, -1, "offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ProjectBids("p1", "", tt.limit, tt.offset)
			var vErr *ValidationError
			if !serrors.As(err, &vErr) {
				t.Fatalf("ProjectBids() error = %v, want ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", vErr.Field, tt.field)
			}

			_, err = svc.FreelancerBids("f1", "", tt.limit, tt.offset)
			if !serrors.As(err, &vErr) {
				t.Fatalf("FreelancerBids() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestBidStatus(t *testing.T) {
	svc, _ := newTestService()

	b, _ := svc.Submit(draft("p1", "f1"))

	status, err := svc.BidStatus(b.Id)
	if err != nil {
		t.Fatalf("BidStatus() error: %v", err)
	}
	if status != bid.StatusPending {
		t.Errorf("BidStatus() = %q, want %q", status, bid.StatusPending)
	}

	if _, err := svc.BidStatus("missing"); !serrors.Is(err, storage.ErrBidNotFound) {
		t.Errorf("BidStatus() on unknown bid error = %v, want ErrBidNotFound", err)
	}
}
