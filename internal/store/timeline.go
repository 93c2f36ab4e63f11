package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// decodeCursor splits a pagination cursor into its parts. A bare timestamp
// pages strictly by time; the three-part "time|resp|rowid" form issued by
// Timeline carries the ORDER BY tiebreak so rows sharing a second across a
// page boundary are not skipped.
func decodeCursor(c string) (ts string, resp int, row int64, full bool, err error) {
	parts := strings.Split(c, "|")
	ts = parts[0]
	if _, perr := time.Parse(TimeFormat, ts); perr != nil {
		return "", 0, 0, false, fmt.Errorf("invalid cursor %q: want %q", c, TimeFormat)
	}
	if len(parts) == 1 {
		return ts, 0, 0, false, nil
	}
	if len(parts) != 3 {
		return "", 0, 0, false, fmt.Errorf("invalid cursor %q", c)
	}
	resp, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, 0, false, fmt.Errorf("invalid cursor %q", c)
	}
	row, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, 0, false, fmt.Errorf("invalid cursor %q", c)
	}
	return ts, resp, row, true, nil
}

// Timeline returns one page of the merged request/response feed for the
// given agent scope, newest first. When before is non-empty only rows
// strictly past that cursor are returned. nextCursor is a keyset cursor
// for the oldest row in the page, or "" when the page came back short
// (no more history).
//
// Callers display pages in ascending order and merge them by TimelineItem.Key.
func (s *Store) Timeline(agentIDs []string, before string, limit int) (items []TimelineItem, nextCursor string, err error) {
	if len(agentIDs) == 0 {
		return nil, "", nil
	}
	if limit <= 0 {
		limit = 50
	}

	ph := inPlaceholders(len(agentIDs))
	reqArgs := stringArgs(agentIDs)
	respArgs := stringArgs(agentIDs)
	reqCond := ""
	respCond := ""
	if before != "" {
		ts, resp, row, full, derr := decodeCursor(before)
		if derr != nil {
			return nil, "", derr
		}
		if full {
			// Keyset continuation along (t DESC, resp DESC, rowid DESC).
			// Requests carry resp=0, responses resp=1.
			reqCond = " AND (created_at < ? OR (created_at = ? AND (? > 0 OR id < ?)))"
			reqArgs = append(reqArgs, ts, ts, resp, row)
			respCond = " AND (r.created_at < ? OR (r.created_at = ? AND ? = 1 AND r.id < ?))"
			respArgs = append(respArgs, ts, ts, resp, row)
		} else {
			reqCond = " AND created_at < ?"
			reqArgs = append(reqArgs, ts)
			respCond = " AND r.created_at < ?"
			respArgs = append(respArgs, ts)
		}
	}

	// Ties on t rank responses above requests: an answer always follows
	// the question it closes, even when both land in the same second.
	query := fmt.Sprintf(`
		SELECT kind, request_id, agent_id, prompt, payload, status, response_json, cancelled, t, resp, rowid_ FROM (
			SELECT 'request' AS kind, request_id, agent_id, prompt, COALESCE(payload,'') AS payload,
				status, '' AS response_json, 0 AS cancelled, created_at AS t, 0 AS resp, id AS rowid_
			FROM cue_requests WHERE agent_id IN (%s)%s
			UNION ALL
			SELECT 'response', r.request_id, q.agent_id, '', '', '', r.response_json, r.cancelled, r.created_at, 1, r.id
			FROM cue_responses r
			JOIN cue_requests q ON q.request_id = r.request_id
			WHERE q.agent_id IN (%s)%s
		) ORDER BY t DESC, resp DESC, rowid_ DESC LIMIT ?`, ph, reqCond, ph, respCond)

	allArgs := append(append(reqArgs, respArgs...), limit)
	rows, err := s.db.Query(query, allArgs...)
	if err != nil {
		return nil, "", fmt.Errorf("timeline: %w", err)
	}
	defer rows.Close()

	var lastResp int
	var lastRow int64
	for rows.Next() {
		var it TimelineItem
		if err := rows.Scan(&it.Kind, &it.RequestID, &it.AgentID, &it.Prompt, &it.Payload,
			&it.Status, &it.ResponseJSON, &it.Cancelled, &it.Time, &lastResp, &lastRow); err != nil {
			return nil, "", err
		}
		it.Key = it.Kind + ":" + it.RequestID
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	if len(items) == limit {
		nextCursor = fmt.Sprintf("%s|%d|%d", items[len(items)-1].Time, lastResp, lastRow)
	}
	return items, nextCursor, nil
}
