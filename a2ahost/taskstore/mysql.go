// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/a2aproject/a2a-host/a2a"
	"github.com/a2aproject/a2a-host/log"
)

// MySQLConfig is a configuration for the [MySQL] store.
type MySQLConfig struct {
	// DSN is the go-sql-driver data source name, e.g.
	// "user:password@tcp(127.0.0.1:3306)/a2ahost?parseTime=true".
	DSN string

	// ConnMaxLifetime bounds how long a pooled connection is reused.
	// Defaults to 3 minutes.
	ConnMaxLifetime time.Duration

	// MaxOpenConns limits the pool size. Defaults to 10.
	MaxOpenConns int

	// MaxIdleConns should match MaxOpenConns to avoid frequent reopening.
	// Defaults to 10.
	MaxIdleConns int
}

// MySQL is an implementation of [Store] backed by MySQL. Each task is stored
// as one row carrying the full JSON document plus the columns listings filter
// on; finished artifacts are mirrored into a side table.
type MySQL struct {
	db *sql.DB
}

var _ Store = (*MySQL)(nil)

// NewMySQL opens a pooled connection to the configured database and verifies
// it is reachable.
func NewMySQL(ctx context.Context, config MySQLConfig) (*MySQL, error) {
	db, err := sql.Open("mysql", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql pool: %w", err)
	}

	if config.ConnMaxLifetime <= 0 {
		config.ConnMaxLifetime = 3 * time.Minute
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 10
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 10
	}
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		closeDB(ctx, db)
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	return &MySQL{db: db}, nil
}

// NewMySQLFromDB wraps an existing pool. The caller stays responsible for
// pool configuration and closing.
func NewMySQLFromDB(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id VARCHAR(255) PRIMARY KEY,
	session_id VARCHAR(255),
	conversation_id VARCHAR(255),
	wallet_address VARCHAR(255),
	state VARCHAR(50),
	status_message_id VARCHAR(255),
	data LONGTEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	INDEX idx_tasks_session (session_id, wallet_address)
)`

const createTaskArtifactsTable = `
CREATE TABLE IF NOT EXISTS task_artifacts (
	id INT AUTO_INCREMENT PRIMARY KEY,
	task_id VARCHAR(255),
	name VARCHAR(255),
	description TEXT,
	data LONGTEXT,
	index_num INT DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (task_id) REFERENCES tasks(task_id) ON DELETE CASCADE
)`

// EnsureSchema creates the backing tables if they do not exist.
func (s *MySQL) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTasksTable, createTaskArtifactsTable} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Save implements [Store].
func (s *MySQL) Save(ctx context.Context, recipientKey string, task *a2a.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	row, err := newTaskRow(recipientKey, task)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackTx(ctx, tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (task_id, session_id, conversation_id, wallet_address, state, status_message_id, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			session_id = VALUES(session_id),
			conversation_id = VALUES(conversation_id),
			wallet_address = VALUES(wallet_address),
			state = VALUES(state),
			status_message_id = VALUES(status_message_id),
			data = VALUES(data)
	`, row.taskID, row.sessionID, row.conversationID, row.walletAddress, row.state, row.statusMessageID, row.data)
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	// Artifacts are replaced wholesale: the canonical document is the source
	// of truth and the side table only mirrors it.
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_artifacts WHERE task_id = ?`, row.taskID); err != nil {
		return fmt.Errorf("failed to clear task artifacts: %w", err)
	}
	for _, artifact := range task.Artifacts {
		data, err := json.Marshal(artifact)
		if err != nil {
			return fmt.Errorf("failed to marshal artifact: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_artifacts (task_id, name, description, data, index_num)
			VALUES (?, ?, ?, ?, ?)
		`, row.taskID, artifact.Name, artifact.Description, string(data), artifact.Index)
		if err != nil {
			return fmt.Errorf("failed to insert artifact: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit task save: %w", err)
	}
	return nil
}

// ListBySession implements [Store].
func (s *MySQL) ListBySession(ctx context.Context, sessionID, recipientKey string) ([]*a2a.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM tasks
		WHERE session_id = ? AND wallet_address = ?
		ORDER BY updated_at DESC
	`, sessionID, recipientKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error(ctx, "failed to close result rows", err)
		}
	}()

	var tasks []*a2a.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		task := &a2a.Task{}
		if err := json.Unmarshal([]byte(data), task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Close releases the underlying connection pool.
func (s *MySQL) Close() error {
	return s.db.Close()
}

// taskRow is the projection of a task onto the columns the tasks table
// indexes. The full document travels in data.
type taskRow struct {
	taskID          string
	sessionID       string
	conversationID  string
	walletAddress   string
	state           string
	statusMessageID string
	data            string
}

func newTaskRow(recipientKey string, task *a2a.Task) (*taskRow, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	row := &taskRow{
		taskID:         task.ID,
		sessionID:      task.SessionID,
		conversationID: task.ConversationID(),
		walletAddress:  recipientKey,
		state:          string(task.Status.State),
		data:           string(data),
	}
	if task.Status.Message != nil {
		row.statusMessageID = task.Status.Message.MessageID()
	}
	return row, nil
}

func rollbackTx(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error(ctx, "failed to roll back transaction", err)
	}
}

func closeDB(ctx context.Context, db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error(ctx, "failed to close mysql pool", err)
	}
}
