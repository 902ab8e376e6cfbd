package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/autograder/internal/model"

	_ "modernc.org/sqlite"
)

var (
	// ErrAlreadyExists is returned when saving a response whose id is taken.
	// Stored responses are write-once.
	ErrAlreadyExists = errors.New("response already exists")
	// ErrNotFound is returned when no response has the requested id.
	ErrNotFound = errors.New("response not found")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grading_responses (
		id TEXT PRIMARY KEY,
		total_score REAL NOT NULL,
		max_score INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		overall_feedback TEXT NOT NULL DEFAULT '',
		graded_at DATETIME NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grading_results (
		response_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		question_id TEXT NOT NULL,
		obtained REAL NOT NULL,
		max_marks INTEGER NOT NULL,
		feedback TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (response_id, position),
		FOREIGN KEY (response_id) REFERENCES grading_responses(id)
	);

	CREATE TABLE IF NOT EXISTS graded_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		response_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grading_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveResponse stores a grading response and its results. The response id
// must be set and unused; an existing response is never overwritten.
func (s *Store) SaveResponse(resp model.GradingResponse) error {
	if resp.ID == "" {
		return errors.New("response id is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO grading_responses (id, total_score, max_score, percentage, overall_feedback, graded_at, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		resp.ID, resp.TotalScore, resp.MaxScore, resp.Percentage, resp.OverallFeedback,
		resp.GradedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, resp.ID)
	}

	for i, r := range resp.Results {
		_, err := tx.Exec(
			`INSERT INTO grading_results (response_id, position, question_id, obtained, max_marks, feedback, is_correct)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			resp.ID, i, r.QuestionID, r.Obtained, r.Max, r.Feedback, r.IsCorrect,
		)
		if err != nil {
			return fmt.Errorf("insert result %s: %w", r.QuestionID, err)
		}
	}

	return tx.Commit()
}

// GetResponse returns a response with its results in question order.
func (s *Store) GetResponse(id string) (*model.GradingResponse, error) {
	var resp model.GradingResponse
	err := s.db.QueryRow(
		`SELECT id, total_score, max_score, percentage, overall_feedback, graded_at
		 FROM grading_responses WHERE id = ?`, id,
	).Scan(&resp.ID, &resp.TotalScore, &resp.MaxScore, &resp.Percentage, &resp.OverallFeedback, &resp.GradedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	results, err := s.getResults(id)
	if err != nil {
		return nil, err
	}
	resp.Results = results
	return &resp, nil
}

func (s *Store) getResults(responseID string) ([]model.GradingResult, error) {
	rows, err := s.db.Query(
		`SELECT question_id, obtained, max_marks, feedback, is_correct
		 FROM grading_results WHERE response_id = ? ORDER BY position`, responseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []model.GradingResult{}
	for rows.Next() {
		var r model.GradingResult
		if err := rows.Scan(&r.QuestionID, &r.Obtained, &r.Max, &r.Feedback, &r.IsCorrect); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListResponses returns response headers, newest first, without their
// per-question results. A limit of 0 means no limit.
func (s *Store) ListResponses(limit, offset int) ([]model.GradingResponse, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, total_score, max_score, percentage, overall_feedback, graded_at
		 FROM grading_responses ORDER BY graded_at DESC, id LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var responses []model.GradingResponse
	for rows.Next() {
		var r model.GradingResponse
		if err := rows.Scan(&r.ID, &r.TotalScore, &r.MaxScore, &r.Percentage, &r.OverallFeedback, &r.GradedAt); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// ResponseCount returns the number of stored responses.
func (s *Store) ResponseCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM grading_responses`).Scan(&count)
	return count, err
}

// GetGradedFileHash returns the content hash recorded for a submission file,
// or "" when the file was never graded.
func (s *Store) GetGradedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM graded_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetGradedFileHash records that a submission file with the given content
// hash produced a response.
func (s *Store) SetGradedFileHash(path, hash, responseID string) error {
	_, err := s.db.Exec(
		`INSERT INTO graded_files (path, hash, response_id) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?, response_id = ?`,
		path, hash, responseID, hash, responseID,
	)
	return err
}
