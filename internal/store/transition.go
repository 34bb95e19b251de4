package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
)

// DefaultListLimit and MaxListLimit bound transition and session listings.
const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Transition is a journalled gesture emission.
type Transition struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	Label     string `json:"label"`
	Payload   string `json:"payload"`
	Previous  string `json:"previous"`
	// Landmarks holds x,y pixel pairs, or nothing when the frame was not kept.
	Landmarks []int     `json:"landmarks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TransitionRepository stores transitions.
type TransitionRepository struct {
	db *sql.DB
}

func (s *Store) Transitions() *TransitionRepository {
	return &TransitionRepository{db: s.db}
}

// Record appends tr to the session's journal. When tr carries a frame its
// landmarks are stored in pixel space of width x height.
func (r *TransitionRepository) Record(sessionID string, tr *gesture.Transition, width, height int) (*Transition, error) {
	rec := &Transition{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       tr.Seq,
		Label:     tr.Label.String(),
		Payload:   string(tr.Payload),
		Previous:  tr.Previous.String(),
		CreatedAt: tr.At.UTC(),
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if tr.Frame != nil {
		rec.Landmarks = tr.Frame.PixelInts(width, height)
	}

	landmarks := ""
	if len(rec.Landmarks) > 0 {
		b, err := json.Marshal(rec.Landmarks)
		if err != nil {
			return nil, err
		}
		landmarks = string(b)
	}

	_, err := r.db.Exec(
		`INSERT INTO transitions (id, session_id, seq, label, payload, previous, landmarks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, int64(rec.Seq), rec.Label, rec.Payload, rec.Previous, landmarks, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record transition: %w", err)
	}
	return rec, nil
}

// ListOptions filters List.
type ListOptions struct {
	SessionID string
	Limit     int
}

// List returns the newest transitions first.
func (r *TransitionRepository) List(opts ListOptions) ([]*Transition, error) {
	query := `SELECT id, session_id, seq, label, payload, previous, landmarks, created_at FROM transitions`
	var args []any
	if opts.SessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, opts.SessionID)
	}
	query += ` ORDER BY created_at DESC, seq DESC LIMIT ?`
	args = append(args, clampLimit(opts.Limit))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns a transition by id.
func (r *TransitionRepository) Get(id string) (*Transition, error) {
	row := r.db.QueryRow(
		`SELECT id, session_id, seq, label, payload, previous, landmarks, created_at FROM transitions WHERE id = ?`,
		id,
	)
	t, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Count returns the number of transitions in a session, or in all sessions
// when sessionID is empty.
func (r *TransitionRepository) Count(sessionID string) (int, error) {
	var n int
	var err error
	if sessionID == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM transitions`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM transitions WHERE session_id = ?`, sessionID).Scan(&n)
	}
	return n, err
}

func scanTransition(sc scanner) (*Transition, error) {
	t := &Transition{}
	var seq int64
	var landmarks string
	err := sc.Scan(&t.ID, &t.SessionID, &seq, &t.Label, &t.Payload, &t.Previous, &landmarks, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Seq = uint64(seq)
	if landmarks != "" {
		if err := json.Unmarshal([]byte(landmarks), &t.Landmarks); err != nil {
			return nil, fmt.Errorf("transition %s landmarks: %w", t.ID, err)
		}
	}
	return t, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// Journal records every transition it is sent into one session.
type Journal struct {
	repo          *TransitionRepository
	sessionID     string
	width, height int
}

// Journal returns a sink writing into sessionID. width and height scale the
// stored landmarks.
func (s *Store) Journal(sessionID string, width, height int) *Journal {
	return &Journal{repo: s.Transitions(), sessionID: sessionID, width: width, height: height}
}

// Send records tr.
func (j *Journal) Send(_ context.Context, tr *gesture.Transition) error {
	_, err := j.repo.Record(j.sessionID, tr, j.width, j.height)
	return err
}

// SessionID returns the session the journal writes to.
func (j *Journal) SessionID() string {
	return j.sessionID
}
