package postgres

import (
	"database/sql"
	serrors "errors"
	"fmt"
	"time"

	"freelance_market/internal/models/bid"
	"freelance_market/internal/models/project"
	"freelance_market/internal/storage"

	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stmt, err := db.Prepare(`
	CREATE TABLE IF NOT EXISTS project (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		clientId UUID NOT NULL,
		title VARCHAR(200) NOT NULL,
		budget NUMERIC(12,2) DEFAULT 0,
		createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.Exec()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stmt, err = db.Prepare(`
	CREATE TABLE IF NOT EXISTS bid (
		id UUID PRIMARY KEY,
		projectId UUID REFERENCES project(id) ON DELETE CASCADE,
		freelancerId UUID NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		proposedDurationDays INT NOT NULL,
		coverLetter VARCHAR(2000) NOT NULL,
		availabilityHoursPerWeek INT DEFAULT 40,
		startDate TIMESTAMP,
		status VARCHAR(50) NOT NULL,
		clientMessage VARCHAR(1000),
		clientDecisionAt TIMESTAMP,
		createdAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updatedAt TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.Exec()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stmt, err = db.Prepare(`
	CREATE UNIQUE INDEX IF NOT EXISTS bid_one_pending_per_freelancer
	ON bid (projectId, freelancerId)
	WHERE status = 'pending';
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.Exec()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stmt, err = db.Prepare(`
	CREATE TABLE IF NOT EXISTS bidMilestone (
		bidId UUID REFERENCES bid(id) ON DELETE CASCADE,
		position INT NOT NULL,
		title VARCHAR(200) NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		description VARCHAR(1000),
		dueDate TIMESTAMP,
		PRIMARY KEY(bidId, position)
	);
	`)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = stmt.Exec()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

const bidColumns = `id, projectId, freelancerId, amount, proposedDurationDays, coverLetter,
availabilityHoursPerWeek, startDate, status, clientMessage, clientDecisionAt, createdAt, updatedAt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBid(row rowScanner) (bid.Bid, error) {
	var b bid.Bid
	var startDate, decisionAt sql.NullTime
	var clientMessage sql.NullString

	err := row.Scan(
		&b.Id, &b.ProjectId, &b.FreelancerId, &b.Amount, &b.ProposedDurationDays, &b.CoverLetter,
		&b.AvailabilityHoursPerWeek, &startDate, &b.Status, &clientMessage, &decisionAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return bid.Bid{}, err
	}

	if startDate.Valid {
		t := startDate.Time
		b.StartDate = &t
	}
	if clientMessage.Valid {
		b.ClientMessage = clientMessage.String
	}
	if decisionAt.Valid {
		t := decisionAt.Time
		b.ClientDecisionAt = &t
	}
	return b, nil
}

func (s *Storage) readMilestones(bidId string) ([]bid.Milestone, error) {
	stmt, err := s.db.Prepare(`
	SELECT title, amount, description, dueDate
	FROM bidMilestone
	WHERE bidId = $1
	ORDER BY position
	`)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(bidId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []bid.Milestone
	for rows.Next() {
		var m bid.Milestone
		var description sql.NullString
		var dueDate sql.NullTime

		err := rows.Scan(&m.Title, &m.Amount, &description, &dueDate)
		if err != nil {
			return nil, err
		}
		if description.Valid {
			m.Description = description.String
		}
		if dueDate.Valid {
			t := dueDate.Time
			m.DueDate = &t
		}
		milestones = append(milestones, m)
	}

	return milestones, rows.Err()
}

func (s *Storage) SaveBid(b bid.Bid) (bid.Bid, error) {
	const op = "storage.postgres.SaveBid"

	tx, err := s.db.Begin()
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
	INSERT INTO bid(id, projectId, freelancerId, amount, proposedDurationDays, coverLetter,
		availabilityHoursPerWeek, startDate, status, createdAt, updatedAt)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	RETURNING `+bidColumns,
		b.Id, b.ProjectId, b.FreelancerId, b.Amount, b.ProposedDurationDays, b.CoverLetter,
		b.AvailabilityHoursPerWeek, b.StartDate, b.Status, b.CreatedAt,
	)

	saved, err := scanBid(row)
	if err != nil {
		if isUniqueViolation(err) {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrDuplicatePending)
		}
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	for i, m := range b.Milestones {
		_, err = tx.Exec(`
		INSERT INTO bidMilestone(bidId, position, title, amount, description, dueDate)
		VALUES ($1, $2, $3, $4, $5, $6)
		`, saved.Id, i, m.Title, m.Amount, m.Description, m.DueDate)
		if err != nil {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	saved.Milestones = b.Milestones
	return saved, nil
}

func (s *Storage) FetchBid(bidId string) (bid.Bid, error) {
	const op = "storage.postgres.FetchBid"

	stmt, err := s.db.Prepare(`SELECT ` + bidColumns + ` FROM bid WHERE id = $1`)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	b, err := scanBid(stmt.QueryRow(bidId))
	if err != nil {
		if serrors.Is(err, sql.ErrNoRows) {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
		}
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	b.Milestones, err = s.readMilestones(b.Id)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (s *Storage) FetchProject(projectId string) (project.Project, error) {
	const op = "storage.postgres.FetchProject"
	var p project.Project

	stmt, err := s.db.Prepare(`
	SELECT id, clientId, title, budget, createdAt
	FROM project
	WHERE id = $1
	`)
	if err != nil {
		return project.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	err = stmt.QueryRow(projectId).Scan(&p.Id, &p.ClientId, &p.Title, &p.Budget, &p.CreatedAt)
	if err != nil {
		if serrors.Is(err, sql.ErrNoRows) {
			return project.Project{}, fmt.Errorf("%s: %w", op, storage.ErrProjectNotFound)
		}
		return project.Project{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (s *Storage) HasPendingBid(projectId, freelancerId string) (bool, error) {
	const op = "storage.postgres.HasPendingBid"
	var exists bool

	stmt, err := s.db.Prepare(`
	SELECT EXISTS (
		SELECT 1 FROM bid
		WHERE projectId = $1 AND freelancerId = $2 AND status = 'pending'
	)
	`)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	err = stmt.QueryRow(projectId, freelancerId).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// UpdatePendingBid writes the mutable fields of b conditionally on the row
// still being pending, so a racing decision cannot be overwritten.
func (s *Storage) UpdatePendingBid(b bid.Bid) (bid.Bid, error) {
	const op = "storage.postgres.UpdatePendingBid"

	stmt, err := s.db.Prepare(`
	UPDATE bid
	SET amount = $1, proposedDurationDays = $2, coverLetter = $3,
		availabilityHoursPerWeek = $4, startDate = $5, updatedAt = $6
	WHERE id = $7 AND status = 'pending'
	RETURNING ` + bidColumns)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := scanBid(stmt.QueryRow(
		b.Amount, b.ProposedDurationDays, b.CoverLetter,
		b.AvailabilityHoursPerWeek, b.StartDate, b.UpdatedAt, b.Id,
	))
	if err != nil {
		if serrors.Is(err, sql.ErrNoRows) {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, s.missingOrDecided(b.Id))
		}
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	updated.Milestones, err = s.readMilestones(updated.Id)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

func (s *Storage) RejectBid(bidId, clientMessage string, decidedAt time.Time) (bid.Bid, error) {
	const op = "storage.postgres.RejectBid"

	stmt, err := s.db.Prepare(`
	UPDATE bid
	SET status = 'rejected', clientMessage = NULLIF($1, ''), clientDecisionAt = $2, updatedAt = $2
	WHERE id = $3 AND status = 'pending'
	RETURNING ` + bidColumns)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	rejected, err := scanBid(stmt.QueryRow(clientMessage, decidedAt, bidId))
	if err != nil {
		if serrors.Is(err, sql.ErrNoRows) {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, s.missingOrDecided(bidId))
		}
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	rejected.Milestones, err = s.readMilestones(rejected.Id)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return rejected, nil
}

func (s *Storage) WithdrawBid(bidId string, at time.Time) (bid.Bid, error) {
	const op = "storage.postgres.WithdrawBid"

	stmt, err := s.db.Prepare(`
	UPDATE bid
	SET status = 'withdrawn', updatedAt = $1
	WHERE id = $2 AND status = 'pending'
	RETURNING ` + bidColumns)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	withdrawn, err := scanBid(stmt.QueryRow(at, bidId))
	if err != nil {
		if serrors.Is(err, sql.ErrNoRows) {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, s.missingOrDecided(bidId))
		}
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	withdrawn.Milestones, err = s.readMilestones(withdrawn.Id)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return withdrawn, nil
}

// AcceptBid accepts one bid and rejects every other pending bid on the same
// project in a single transaction. The project's rows are locked in id order
// so two concurrent accepts serialize instead of deadlocking; whichever
// transaction runs second finds its target no longer pending.
func (s *Storage) AcceptBid(bidId string, decidedAt time.Time, cascadeMessage string) (bid.Bid, error) {
	const op = "storage.postgres.AcceptBid"

	tx, err := s.db.Begin()
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	var projectId string
	err = tx.QueryRow(`SELECT projectId FROM bid WHERE id = $1`, bidId).Scan(&projectId)
	if err != nil {
		if serrors.Is(err, sql.ErrNoRows) {
			return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrBidNotFound)
		}
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := tx.Query(`
	SELECT id, status FROM bid
	WHERE projectId = $1
	ORDER BY id
	FOR UPDATE
	`, projectId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	targetPending := false
	for rows.Next() {
		var id string
		var status bid.Status
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
		}
		if id == bidId && status == bid.StatusPending {
			targetPending = true
		}
	}
	if err := rows.Err(); err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}
	rows.Close()

	if !targetPending {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, storage.ErrNotPending)
	}

	row := tx.QueryRow(`
	UPDATE bid
	SET status = 'accepted', clientDecisionAt = $1, updatedAt = $1
	WHERE id = $2 AND status = 'pending'
	RETURNING `+bidColumns, decidedAt, bidId)

	accepted, err := scanBid(row)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.Exec(`
	UPDATE bid
	SET status = 'rejected', clientMessage = $1, clientDecisionAt = $2, updatedAt = $2
	WHERE projectId = $3 AND id <> $4 AND status = 'pending'
	`, cascadeMessage, decidedAt, projectId, bidId)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	accepted.Milestones, err = s.readMilestones(accepted.Id)
	if err != nil {
		return bid.Bid{}, fmt.Errorf("%s: %w", op, err)
	}

	return accepted, nil
}

func (s *Storage) ListProjectBids(projectId string, status bid.Status, limit, offset int) ([]bid.Bid, error) {
	const op = "storage.postgres.ListProjectBids"

	query := `SELECT ` + bidColumns + ` FROM bid WHERE projectId = $1`
	args := []any{projectId}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY createdAt DESC LIMIT %d OFFSET %d`, limit, offset)

	return s.listBids(op, query, args...)
}

func (s *Storage) ListFreelancerBids(freelancerId string, status bid.Status, limit, offset int) ([]bid.Bid, error) {
	const op = "storage.postgres.ListFreelancerBids"

	query := `SELECT ` + bidColumns + ` FROM bid WHERE freelancerId = $1`
	args := []any{freelancerId}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY createdAt DESC LIMIT %d OFFSET %d`, limit, offset)

	return s.listBids(op, query, args...)
}

func (s *Storage) listBids(op, query string, args ...any) ([]bid.Bid, error) {
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := make([]bid.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i := range result {
		result[i].Milestones, err = s.readMilestones(result[i].Id)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return result, nil
}

// missingOrDecided tells apart the two reasons a conditional update on
// status = 'pending' can match zero rows.
func (s *Storage) missingOrDecided(bidId string) error {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM bid WHERE id = $1)`, bidId).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrBidNotFound
	}
	return storage.ErrNotPending
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if serrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
