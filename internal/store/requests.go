package store

import (
	"database/sql"
	"fmt"
	"strings"
)

func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

// CreateRequest inserts a new cue request. In normal operation requests are
// written by the MCP server process, not the console; this exists for
// tooling and tests that need to seed the shared database.
func (s *Store) CreateRequest(r *CueRequest) error {
	if r.Status == "" {
		r.Status = StatusPending
	}
	var payload any
	if r.Payload != "" {
		payload = r.Payload
	}
	res, err := s.db.Exec(`INSERT INTO cue_requests (request_id, agent_id, prompt, payload, status)
		VALUES (?, ?, ?, ?, ?)`,
		r.RequestID, r.AgentID, r.Prompt, payload, r.Status)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

const requestColumns = `id, request_id, agent_id, prompt, COALESCE(payload,''), status, created_at, updated_at`

func scanRequest(row interface{ Scan(...any) error }) (*CueRequest, error) {
	var r CueRequest
	err := row.Scan(&r.ID, &r.RequestID, &r.AgentID, &r.Prompt, &r.Payload, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRequest returns a request by request_id, or nil if not found.
func (s *Store) GetRequest(requestID string) (*CueRequest, error) {
	r, err := scanRequest(s.db.QueryRow(`SELECT `+requestColumns+` FROM cue_requests WHERE request_id = ?`, requestID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// RequestFilter holds query parameters for ListRequests.
type RequestFilter struct {
	AgentID string
	Status  string
	Limit   int
}

// ListRequests returns requests matching the filter, newest first.
func (s *Store) ListRequests(f RequestFilter) ([]CueRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM cue_requests WHERE 1=1`
	args := []any{}
	if f.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, f.AgentID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []CueRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// PendingCount returns the number of PENDING requests for the given agents.
func (s *Store) PendingCount(agentIDs []string) (int, error) {
	if len(agentIDs) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM cue_requests WHERE status = ? AND agent_id IN (%s)`,
		inPlaceholders(len(agentIDs)))
	args := append([]any{StatusPending}, stringArgs(agentIDs)...)
	var n int
	err := s.db.QueryRow(query, args...).Scan(&n)
	return n, err
}

// PendingTotal returns the number of PENDING requests across all agents.
func (s *Store) PendingTotal() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cue_requests WHERE status = ?`, StatusPending).Scan(&n)
	return n, err
}

// PendingSince returns PENDING requests created strictly after the given
// timestamp (all of them when since is empty), oldest first. Used by the
// notification watcher as a high-water-mark poll.
func (s *Store) PendingSince(since string) ([]CueRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM cue_requests WHERE status = ?`
	args := []any{StatusPending}
	if since != "" {
		query += " AND created_at > ?"
		args = append(args, since)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending since: %w", err)
	}
	defer rows.Close()

	var out []CueRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AgentIDs returns every agent that has ever issued a request.
func (s *Store) AgentIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT agent_id FROM cue_requests ORDER BY agent_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertResponse writes the response row for a request. First write wins:
// a request that already has a response is left untouched and inserted
// reports false.
func (s *Store) InsertResponse(requestID, responseJSON string, cancelled bool) (inserted bool, err error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO cue_responses (request_id, response_json, cancelled)
		VALUES (?, ?, ?)`, requestID, responseJSON, cancelled)
	if err != nil {
		return false, fmt.Errorf("insert response: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetRequestStatus updates a request's status unconditionally. Responding to
// an already-terminal request therefore succeeds silently; the lifecycle
// engine relies on that.
func (s *Store) SetRequestStatus(requestID, status string) error {
	_, err := s.db.Exec(`UPDATE cue_requests SET status = ?, updated_at = datetime('now') WHERE request_id = ?`,
		status, requestID)
	return err
}

// RespondAll writes the same response to every listed request and flips each
// status, all inside one transaction: either the whole batch lands or none
// of it does.
func (s *Store) RespondAll(requestIDs []string, responseJSON string, cancelled bool, status string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("batch respond: %w", err)
	}
	defer tx.Rollback()

	for _, id := range requestIDs {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO cue_responses (request_id, response_json, cancelled)
			VALUES (?, ?, ?)`, id, responseJSON, cancelled); err != nil {
			return fmt.Errorf("batch respond %s: %w", id, err)
		}
		if _, err := tx.Exec(`UPDATE cue_requests SET status = ?, updated_at = datetime('now') WHERE request_id = ?`,
			status, id); err != nil {
			return fmt.Errorf("batch respond %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// GetResponse returns the response for a request, or nil if none exists.
func (s *Store) GetResponse(requestID string) (*CueResponse, error) {
	var r CueResponse
	err := s.db.QueryRow(`SELECT id, request_id, response_json, cancelled, created_at
		FROM cue_responses WHERE request_id = ?`, requestID).
		Scan(&r.ID, &r.RequestID, &r.ResponseJSON, &r.Cancelled, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	return &r, nil
}
