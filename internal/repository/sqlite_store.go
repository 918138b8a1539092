package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"KineJump/internal/domain/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS athletes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	sex        TEXT NOT NULL,
	age        INTEGER NOT NULL DEFAULT 0,
	height_cm  REAL NOT NULL,
	weight_kg  REAL NOT NULL,
	level      TEXT NOT NULL,
	segments   TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	jump_type  TEXT NOT NULL,
	status     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	phases     TEXT NOT NULL DEFAULT '[]',
	faults     TEXT NOT NULL DEFAULT '{}',
	metrics    TEXT,
	result     TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	athlete_id INTEGER NOT NULL,
	summary    TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_athlete ON sessions(athlete_id);
`

// SQLiteStore persists athletes, attempts and session summaries in a
// local SQLite database. Nested structures go into JSON columns; the
// queried axes (session, athlete) stay relational.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the database file.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Init ensures the schema exists.
func (s *SQLiteStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveAthlete inserts an athlete and returns the generated id.
func (s *SQLiteStore) SaveAthlete(ctx context.Context, a *models.Athlete) (int64, error) {
	segments, err := json.Marshal(a.Segments)
	if err != nil {
		return 0, fmt.Errorf("marshal segments: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO athletes (name, sex, age, height_cm, weight_kg, level, segments)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, string(a.Sex), a.Age, a.HeightCM, a.WeightKG, a.Level.String(), string(segments),
	)
	if err != nil {
		return 0, fmt.Errorf("insert athlete: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("athlete id: %w", err)
	}
	a.ID = id
	return id, nil
}

// GetAthlete loads one athlete by id.
func (s *SQLiteStore) GetAthlete(ctx context.Context, id int64) (*models.Athlete, error) {
	var (
		a        models.Athlete
		sex      string
		level    string
		segments string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, sex, age, height_cm, weight_kg, level, segments
		 FROM athletes WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &sex, &a.Age, &a.HeightCM, &a.WeightKG, &level, &segments)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("athlete %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}

	a.Sex = models.Sex(sex)
	if a.Level, err = models.ParseSkillLevel(level); err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}
	if err := json.Unmarshal([]byte(segments), &a.Segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	return &a, nil
}

// SaveAttempt inserts a finished attempt under its session.
func (s *SQLiteStore) SaveAttempt(ctx context.Context, sessionID string, a *models.JumpAttempt) (int64, error) {
	phases, err := json.Marshal(a.Phases)
	if err != nil {
		return 0, fmt.Errorf("marshal phases: %w", err)
	}
	faults, err := json.Marshal(a.Faults)
	if err != nil {
		return 0, fmt.Errorf("marshal faults: %w", err)
	}
	metrics, err := marshalNullable(a.Metrics)
	if err != nil {
		return 0, fmt.Errorf("marshal metrics: %w", err)
	}
	result, err := marshalNullable(a.Result)
	if err != nil {
		return 0, fmt.Errorf("marshal result: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (session_id, jump_type, status, reason, phases, faults, metrics, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(a.Type), string(a.Status), string(a.Reason),
		string(phases), string(faults), metrics, result,
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("attempt id: %w", err)
	}
	return id, nil
}

// ListAttempts returns a session's attempts in insertion order.
func (s *SQLiteStore) ListAttempts(ctx context.Context, sessionID string) ([]*models.JumpAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, jump_type, status, reason, phases, faults, metrics, result
		 FROM attempts WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.JumpAttempt
	for rows.Next() {
		var (
			a                      models.JumpAttempt
			jumpType, status       string
			reason, phases, faults string
			metrics, result        sql.NullString
		)
		if err := rows.Scan(&a.ID, &jumpType, &status, &reason, &phases, &faults, &metrics, &result); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Type = models.JumpType(jumpType)
		a.Status = models.AttemptStatus(status)
		a.Reason = models.InvalidReason(reason)
		if err := json.Unmarshal([]byte(phases), &a.Phases); err != nil {
			return nil, fmt.Errorf("unmarshal phases: %w", err)
		}
		if err := json.Unmarshal([]byte(faults), &a.Faults); err != nil {
			return nil, fmt.Errorf("unmarshal faults: %w", err)
		}
		if metrics.Valid {
			a.Metrics = &models.Metrics{}
			if err := json.Unmarshal([]byte(metrics.String), a.Metrics); err != nil {
				return nil, fmt.Errorf("unmarshal metrics: %w", err)
			}
		}
		if result.Valid {
			a.Result = &models.ClassificationResult{}
			if err := json.Unmarshal([]byte(result.String), a.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// SaveSession upserts the session summary.
func (s *SQLiteStore) SaveSession(ctx context.Context, sum *models.SessionSummary) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, athlete_id, summary) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET summary = excluded.summary`,
		sum.SessionID, sum.AthleteID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession loads a persisted session summary.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sum models.SessionSummary
	if err := json.Unmarshal([]byte(payload), &sum); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &sum, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalNullable(v interface{}) (sql.NullString, error) {
	switch t := v.(type) {
	case *models.Metrics:
		if t == nil {
			return sql.NullString{}, nil
		}
	case *models.ClassificationResult:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
