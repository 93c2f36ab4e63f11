package store

import (
	"database/sql"
	"fmt"
)

// --- Agent profiles ---

// UpsertProfile sets an agent's display name, last write wins.
func (s *Store) UpsertProfile(agentID, displayName string) error {
	_, err := s.db.Exec(`INSERT INTO agent_profiles (agent_id, display_name, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(agent_id) DO UPDATE SET
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		agentID, displayName)
	return err
}

// Profiles returns the agent_id → display_name map.
func (s *Store) Profiles() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT agent_id, display_name FROM agent_profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// --- Groups ---

// CreateGroup inserts a group row.
func (s *Store) CreateGroup(id, name string) error {
	_, err := s.db.Exec(`INSERT INTO groups (id, name) VALUES (?, ?)`, id, name)
	return err
}

// RenameGroup sets a group's name. Renaming a missing group is a no-op.
func (s *Store) RenameGroup(id, name string) error {
	_, err := s.db.Exec(`UPDATE groups SET name = ? WHERE id = ?`, name, id)
	return err
}

// DeleteGroup removes the group row; membership cascades.
func (s *Store) DeleteGroup(id string) error {
	_, err := s.db.Exec(`DELETE FROM groups WHERE id = ?`, id)
	return err
}

// GetGroup returns a group by id, or nil if not found.
func (s *Store) GetGroup(id string) (*Group, error) {
	var g Group
	err := s.db.QueryRow(`SELECT id, name, created_at FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

// ListGroups returns all groups sorted by name.
func (s *Store) ListGroups() ([]Group, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM groups ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetGroupMembers replaces a group's membership with the given agent names.
func (s *Store) SetGroupMembers(groupID string, agentNames []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("set group members: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("set group members: %w", err)
	}
	for _, name := range agentNames {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO group_members (group_id, agent_name) VALUES (?, ?)`,
			groupID, name); err != nil {
			return fmt.Errorf("set group members: %w", err)
		}
	}
	return tx.Commit()
}

// GroupMembers returns the current member agent names of a group.
func (s *Store) GroupMembers(groupID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT agent_name FROM group_members WHERE group_id = ? ORDER BY agent_name ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// --- Conversation meta ---

// Meta returns the full conversation_meta table keyed by "{type}:{id}".
func (s *Store) Meta() (map[string]ConversationMeta, error) {
	rows, err := s.db.Query(`SELECT key, type, id, archived, COALESCE(archived_at,''), deleted, COALESCE(deleted_at,'')
		FROM conversation_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]ConversationMeta{}
	for rows.Next() {
		var m ConversationMeta
		if err := rows.Scan(&m.Key, &m.Type, &m.ID, &m.Archived, &m.ArchivedAt, &m.Deleted, &m.DeletedAt); err != nil {
			return nil, err
		}
		out[m.Key] = m
	}
	return out, rows.Err()
}

// SetArchived lazily materializes the meta row and flips the archived flag.
// Idempotent; the timestamp refreshes on re-archive.
func (s *Store) SetArchived(ctype, id string, archived bool) error {
	key := ctype + ":" + id
	if archived {
		_, err := s.db.Exec(`INSERT INTO conversation_meta (key, type, id, archived, archived_at)
			VALUES (?, ?, ?, 1, datetime('now'))
			ON CONFLICT(key) DO UPDATE SET archived = 1, archived_at = datetime('now')`,
			key, ctype, id)
		return err
	}
	_, err := s.db.Exec(`INSERT INTO conversation_meta (key, type, id, archived)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET archived = 0, archived_at = NULL`,
		key, ctype, id)
	return err
}

// SetDeleted soft-deletes a conversation. There is no undelete.
func (s *Store) SetDeleted(ctype, id string) error {
	key := ctype + ":" + id
	_, err := s.db.Exec(`INSERT INTO conversation_meta (key, type, id, deleted, deleted_at)
		VALUES (?, ?, ?, 1, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET deleted = 1, deleted_at = datetime('now')`,
		key, ctype, id)
	return err
}

// LastActivity returns the most recent request or response among the given
// agents, or nil when the scope has no history.
func (s *Store) LastActivity(agentIDs []string) (*Activity, error) {
	if len(agentIDs) == 0 {
		return nil, nil
	}
	ph := inPlaceholders(len(agentIDs))
	// Ties on t rank responses above requests, same as the timeline feed.
	query := fmt.Sprintf(`
		SELECT kind, agent_id, text, t FROM (
			SELECT 'request' AS kind, agent_id, prompt AS text, created_at AS t, 0 AS resp, id AS rowid_
			FROM cue_requests WHERE agent_id IN (%s)
			UNION ALL
			SELECT 'response', q.agent_id, r.response_json, r.created_at, 1, r.id
			FROM cue_responses r
			JOIN cue_requests q ON q.request_id = r.request_id
			WHERE q.agent_id IN (%s)
		) ORDER BY t DESC, resp DESC, rowid_ DESC LIMIT 1`, ph, ph)

	args := append(stringArgs(agentIDs), stringArgs(agentIDs)...)
	var a Activity
	err := s.db.QueryRow(query, args...).Scan(&a.Kind, &a.AgentID, &a.Text, &a.Time)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last activity: %w", err)
	}
	return &a, nil
}
