package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// MessageRow is one stored chat message. Sender is "user" or "bot".
type MessageRow struct {
	ID             string    `json:"id"`
	BotID          string    `json:"bot_id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Client manages the Postgres connection for message and trace storage.
type Client struct {
	db *sql.DB
}

// New creates a new Postgres client using environment variables.
func New() (*Client, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "botweaver")
	dbname := getEnv("PGDATABASE", "botweaver")
	password := os.Getenv("PGPASSWORD")

	var connStr string
	if password != "" {
		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	} else {
		connStr = fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
			host, port, user, dbname)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS messages (
			id              UUID PRIMARY KEY,
			bot_id          TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			sender          TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_bot_id ON messages(bot_id);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(bot_id, conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS trace_events (
			event_id BIGSERIAL PRIMARY KEY,
			ts       TIMESTAMPTZ NOT NULL,
			level    TEXT NOT NULL,
			event    TEXT NOT NULL,
			msg      TEXT,
			fields   JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_trace_events_ts ON trace_events(ts DESC);
	`
	_, err := c.db.Exec(query)
	return err
}

// SaveMessage inserts one chat message and returns its generated ID.
func (c *Client) SaveMessage(botID, conversationID, sender, content string) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO messages (id, bot_id, conversation_id, sender, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := c.db.Exec(query, id, botID, conversationID, sender, content, time.Now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

// RecentMessages returns the last limit messages of a conversation in
// chronological order.
func (c *Client) RecentMessages(botID, conversationID string, limit int) ([]MessageRow, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, bot_id, conversation_id, sender, content, created_at
		FROM (
			SELECT id, bot_id, conversation_id, sender, content, created_at
			FROM messages
			WHERE bot_id = $1 AND conversation_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`
	rows, err := c.db.Query(query, botID, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ID, &m.BotID, &m.ConversationID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// AppendEvent inserts a trace event into the database.
func (c *Client) AppendEvent(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	query := `
		INSERT INTO trace_events (ts, level, event, msg, fields)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON)
	return err
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
