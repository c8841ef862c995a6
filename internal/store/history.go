package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/switchboard/internal/engine"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

type HistoryStore struct {
	DB *sql.DB
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; gateways may call in concurrently.
	db.SetMaxOpenConns(1)

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			request TEXT,
			plan TEXT,
			waves TEXT,
			combined TEXT,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			run_id INTEGER REFERENCES runs(id) ON DELETE CASCADE,
			step_id INTEGER,
			worker TEXT,
			task TEXT,
			output TEXT,
			error TEXT,
			PRIMARY KEY (run_id, step_id)
		);`,
	}
	for _, q := range queries {
		_, err = db.Exec(q)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	return &HistoryStore{DB: db}, nil
}

func (h *HistoryStore) Close() error {
	return h.DB.Close()
}

func (h *HistoryStore) AddMessage(chatID string, role string, content string) error {
	query := `INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`
	_, err := h.DB.Exec(query, chatID, role, content)
	return err
}

func (h *HistoryStore) GetHistory(chatID string, limit int) ([]llms.MessageContent, error) {
	query := `SELECT role, content FROM messages WHERE chat_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := h.DB.Query(query, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}

		var msgRole llms.ChatMessageType
		switch role {
		case "human":
			msgRole = llms.ChatMessageTypeHuman
		case "ai":
			msgRole = llms.ChatMessageTypeAI
		case "system":
			msgRole = llms.ChatMessageTypeSystem
		default:
			msgRole = llms.ChatMessageTypeHuman
		}

		history = append(history, llms.MessageContent{
			Role: msgRole,
			Parts: []llms.ContentPart{
				llms.TextPart(content),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	return history, nil
}

// SaveRun stores a finished (or aborted) run with its records. res may be nil when
// the run never started.
func (h *HistoryStore) SaveRun(ctx context.Context, chatID, request string, plan engine.Plan, res *engine.Result, runErr error) (int64, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return 0, fmt.Errorf("encode plan: %w", err)
	}
	var (
		waves    [][]int
		combined string
		records  []engine.ExecutionRecord
	)
	if res != nil {
		waves, combined, records = res.Waves, res.Combined, res.Records
	}
	wavesJSON, err := json.Marshal(waves)
	if err != nil {
		return 0, fmt.Errorf("encode waves: %w", err)
	}
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	out, err := tx.ExecContext(ctx,
		`INSERT INTO runs (chat_id, request, plan, waves, combined, error) VALUES (?, ?, ?, ?, ?, ?)`,
		chatID, request, string(planJSON), string(wavesJSON), combined, errText)
	if err != nil {
		return 0, err
	}
	id, err := out.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (run_id, step_id, worker, task, output, error) VALUES (?, ?, ?, ?, ?, ?)`,
			id, rec.StepID, rec.Worker, rec.Task, rec.Output, rec.Error); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetRun loads a run and its records, in the order they were recorded.
func (h *HistoryStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := h.DB.QueryRowContext(ctx,
		`SELECT id, chat_id, request, plan, waves, combined, error, created_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := h.DB.QueryContext(ctx,
		`SELECT step_id, worker, task, output, error FROM records WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rec engine.ExecutionRecord
		if err := rows.Scan(&rec.StepID, &rec.Worker, &rec.Task, &rec.Output, &rec.Error); err != nil {
			return nil, err
		}
		run.Records = append(run.Records, rec)
	}
	return run, rows.Err()
}

// RecentRuns lists the latest runs of a chat, newest first, without their records.
func (h *HistoryStore) RecentRuns(ctx context.Context, chatID string, limit int) ([]*Run, error) {
	rows, err := h.DB.QueryContext(ctx,
		`SELECT id, chat_id, request, plan, waves, combined, error, created_at FROM runs
		 WHERE chat_id = ? ORDER BY id DESC LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                 Run
		planJSON, wavesJSON string
		created             string
	)
	if err := s.Scan(&run.ID, &run.ChatID, &run.Request, &planJSON, &wavesJSON, &run.Combined, &run.Error, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(planJSON), &run.Plan); err != nil {
		return nil, fmt.Errorf("decode plan of run %d: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(wavesJSON), &run.Waves); err != nil {
		return nil, fmt.Errorf("decode waves of run %d: %w", run.ID, err)
	}
	run.CreatedAt = parseTimestamp(created)
	return &run, nil
}

// parseTimestamp accepts both the sqlite CURRENT_TIMESTAMP text form and the RFC 3339
// form the driver produces when it has already decoded the column.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
