package internal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DispatchLedger records what the router has shown and which read receipts are owed
type DispatchLedger interface {
	Seen(ctx context.Context, id int64) (bool, error)
	RecordDispatched(ctx context.Context, conversation string, messages []ChatMessage) error
	RecordOutgoing(ctx context.Context, conversation string, msg ChatMessage) error
	MarkReceipts(ctx context.Context, ids []int64, acked bool) error
	PendingReceipts(ctx context.Context) ([]int64, error)
}

var _ DispatchLedger = (*MessageStore)(nil)

// StoredMessage is a message row of the history database
type StoredMessage struct {
	ID           int64     `json:"id" yaml:"id"`
	UserID       int64     `json:"user_id" yaml:"user_id"`
	Conversation string    `json:"conversation" yaml:"conversation"`
	TimestampSec int64     `json:"date" yaml:"date"`
	Body         string    `json:"body" yaml:"body"`
	Outgoing     bool      `json:"out" yaml:"out"`
	DispatchedAt time.Time `json:"dispatched_at" yaml:"dispatched_at"`
}

// Time returns the message timestamp as a time.Time
func (m StoredMessage) Time() time.Time {
	return time.Unix(m.TimestampSec, 0)
}

// ConversationSummary is one line of the history listing
type ConversationSummary struct {
	UserID       int64
	Conversation string
	MessageCount int
	LastAt       time.Time
	Unacked      int
}

// Conversation is the stored history with one user, oldest message first
type Conversation struct {
	UserID       int64           `json:"user_id" yaml:"user_id"`
	Conversation string          `json:"conversation" yaml:"conversation"`
	Messages     []StoredMessage `json:"messages" yaml:"messages"`
}

// MessageStore keeps the message history and the read-receipt ledger in SQLite
type MessageStore struct {
	db   *sql.DB
	path string
}

// OpenMessageStore opens (or creates) the store at path and initializes the schema
func OpenMessageStore(path string) (*MessageStore, error) {
	db, err := OpenDatabase(path, false)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}
	return NewMessageStore(db, path)
}

// NewMessageStore wraps an open database and initializes the schema
func NewMessageStore(db *sql.DB, path string) (*MessageStore, error) {
	s := &MessageStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "migrate", Err: err}
	}
	return s, nil
}

// Close closes the database connection
func (s *MessageStore) Close() error { return s.db.Close() }

// Path returns the database path
func (s *MessageStore) Path() string { return s.path }

func (s *MessageStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id            INTEGER PRIMARY KEY,
		user_id       INTEGER NOT NULL,
		conversation  TEXT NOT NULL,
		ts            INTEGER NOT NULL,
		body          TEXT NOT NULL DEFAULT '',
		outgoing      INTEGER NOT NULL DEFAULT 0,
		dispatched_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_user_ts ON messages(user_id, ts);

	CREATE TABLE IF NOT EXISTS read_receipts (
		message_id INTEGER PRIMARY KEY,
		acked      INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_read_receipts_acked ON read_receipts(acked);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Seen reports whether a message id was already recorded
func (s *MessageStore) Seen(ctx context.Context, id int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, s.wrap("seen", err)
	}
	return n > 0, nil
}

// RecordDispatched stores incoming messages shown in conversation and opens a pending
// read receipt for each of them. Ids already stored are left alone.
func (s *MessageStore) RecordDispatched(ctx context.Context, conversation string, messages []ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, m := range messages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (id, user_id, conversation, ts, body, outgoing, dispatched_at)
				 VALUES (?, ?, ?, ?, ?, 0, ?)
				 ON CONFLICT(id) DO NOTHING`,
				m.ID, m.UserID, conversation, m.TimestampSec, m.Body, now,
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO read_receipts (message_id, acked, updated_at)
				 VALUES (?, 0, ?)
				 ON CONFLICT(message_id) DO NOTHING`,
				m.ID, now,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	return s.wrap("record dispatched", err)
}

// RecordOutgoing stores a message we sent
func (s *MessageStore) RecordOutgoing(ctx context.Context, conversation string, msg ChatMessage) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := retryOnContention(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (id, user_id, conversation, ts, body, outgoing, dispatched_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?)
			 ON CONFLICT(id) DO UPDATE SET body = excluded.body, outgoing = 1`,
			msg.ID, msg.UserID, conversation, msg.TimestampSec, msg.Body, now,
		)
		return err
	})
	return s.wrap("record outgoing", err)
}

// MarkReceipts sets the acknowledgement state of read receipts
func (s *MessageStore) MarkReceipts(ctx context.Context, ids []int64, acked bool) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	state := 0
	if acked {
		state = 1
	}
	err := retryOnContention(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO read_receipts (message_id, acked, updated_at)
				 VALUES (?, ?, ?)
				 ON CONFLICT(message_id) DO UPDATE SET acked = excluded.acked, updated_at = excluded.updated_at`,
				id, state, now,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	return s.wrap("mark receipts", err)
}

// PendingReceipts returns the ids whose read receipt was not acknowledged yet, ascending
func (s *MessageStore) PendingReceipts(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id FROM read_receipts WHERE acked = 0 ORDER BY message_id`)
	if err != nil {
		return nil, s.wrap("pending receipts", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, s.wrap("pending receipts", err)
		}
		ids = append(ids, id)
	}
	return ids, s.wrap("pending receipts", rows.Err())
}

// Conversations lists stored conversations, most recent first
func (s *MessageStore) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.user_id,
		       (SELECT conversation FROM messages WHERE user_id = m.user_id ORDER BY ts DESC, id DESC LIMIT 1),
		       COUNT(*),
		       MAX(m.ts),
		       SUM(CASE WHEN r.acked = 0 THEN 1 ELSE 0 END)
		FROM messages m
		LEFT JOIN read_receipts r ON r.message_id = m.id
		GROUP BY m.user_id
		ORDER BY MAX(m.ts) DESC, m.user_id`)
	if err != nil {
		return nil, s.wrap("conversations", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var (
			cs      ConversationSummary
			lastTS  int64
			unacked sql.NullInt64
		)
		if err := rows.Scan(&cs.UserID, &cs.Conversation, &cs.MessageCount, &lastTS, &unacked); err != nil {
			return nil, s.wrap("conversations", err)
		}
		cs.LastAt = time.Unix(lastTS, 0)
		cs.Unacked = int(unacked.Int64)
		summaries = append(summaries, cs)
	}
	return summaries, s.wrap("conversations", rows.Err())
}

// History returns the last limit messages exchanged with userID, oldest first.
// limit <= 0 returns everything.
func (s *MessageStore) History(ctx context.Context, userID int64, limit int) (*Conversation, error) {
	query := `SELECT id, user_id, conversation, ts, body, outgoing, dispatched_at
		FROM messages WHERE user_id = ? ORDER BY ts DESC, id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap("history", err)
	}
	defer rows.Close()

	conv := &Conversation{UserID: userID}
	for rows.Next() {
		var (
			m            StoredMessage
			outgoing     int
			dispatchedAt string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Conversation, &m.TimestampSec, &m.Body, &outgoing, &dispatchedAt); err != nil {
			return nil, s.wrap("history", err)
		}
		m.Outgoing = outgoing != 0
		m.DispatchedAt, _ = time.Parse(time.RFC3339Nano, dispatchedAt)
		conv.Messages = append(conv.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("history", err)
	}

	// newest first from the query, reverse to chronological
	for i, j := 0, len(conv.Messages)-1; i < j; i, j = i+1, j-1 {
		conv.Messages[i], conv.Messages[j] = conv.Messages[j], conv.Messages[i]
	}
	if n := len(conv.Messages); n > 0 {
		conv.Conversation = conv.Messages[n-1].Conversation
	}
	return conv, nil
}

func (s *MessageStore) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Path: s.path, Op: op, Err: err}
}

// joinIDs renders ids as a comma separated list
func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
