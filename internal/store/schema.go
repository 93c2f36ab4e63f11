package store

// Cue request status values. A request starts PENDING and moves at most once
// to a terminal state; the transition is driven only by a submitted response.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Conversation types used in conversation_meta keys and the message queue.
const (
	ConversationAgent = "agent"
	ConversationGroup = "group"
)

// CueRequest is a question an agent posed to the human operator.
//
// Rows are written by the external MCP server process; the console only ever
// flips status and writes the paired response.
type CueRequest struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Prompt    string `json:"prompt"`
	Payload   string `json:"payload,omitempty"` // serialized choice/confirm/form description
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CueResponse is the human's answer to one request. Immutable once written.
type CueResponse struct {
	ID           int64  `json:"id"`
	RequestID    string `json:"request_id"`
	ResponseJSON string `json:"response_json"`
	Cancelled    bool   `json:"cancelled"`
	CreatedAt    string `json:"created_at"`
}

// Attachment is an inline image carried by a response or a queued message.
type Attachment struct {
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data"` // base64
}

// Group is a named collection of agents.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ConversationMeta holds per-conversation archival/deletion flags.
// A conversation absent from the table behaves as active and not deleted.
type ConversationMeta struct {
	Key        string `json:"key"` // "{type}:{id}"
	Type       string `json:"type"`
	ID         string `json:"id"`
	Archived   bool   `json:"archived"`
	ArchivedAt string `json:"archived_at,omitempty"`
	Deleted    bool   `json:"deleted"`
	DeletedAt  string `json:"deleted_at,omitempty"`
}

// QueuedMessage is a drafted-but-unsent message scoped to one conversation.
type QueuedMessage struct {
	ID               string       `json:"id"`
	ConversationType string       `json:"conversation_type"`
	ConversationID   string       `json:"conversation_id"`
	Text             string       `json:"text"`
	Images           []Attachment `json:"images"`
	CreatedAt        string       `json:"created_at"`
	Position         *int         `json:"position,omitempty"` // set once the queue has been reordered
}

// Activity is the most recent request or response within a conversation scope.
type Activity struct {
	Kind    string // "request" | "response"
	AgentID string
	Text    string // prompt, or response_json for responses
	Time    string
}

// TimelineItem is one row of the merged request/response feed.
// Key is a stable dedup key ("request:<id>" / "response:<id>") so clients can
// merge pages fetched out of order relative to live polling refreshes.
type TimelineItem struct {
	Key          string `json:"key"`
	Kind         string `json:"kind"` // "request" | "response"
	RequestID    string `json:"request_id"`
	AgentID      string `json:"agent_id"`
	Prompt       string `json:"prompt,omitempty"`
	Payload      string `json:"payload,omitempty"`
	Status       string `json:"status,omitempty"`
	ResponseJSON string `json:"response_json,omitempty"`
	Cancelled    bool   `json:"cancelled,omitempty"`
	Time         string `json:"time"`
}

// Schema is applied on every open. All timestamps are UTC
// "YYYY-MM-DD HH:MM:SS" strings written via datetime('now'), which sorts
// lexicographically in chronological order. The table shapes are a shared
// contract with the external MCP server process.
//
// Timestamp columns are declared TEXT, never DATETIME: the sqlite driver
// maps a DATETIME decltype to time.Time and would hand back RFC3339
// strings, breaking the pinned layout.
const Schema = `
CREATE TABLE IF NOT EXISTS agent_profiles (
	agent_id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cue_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT UNIQUE NOT NULL,
	agent_id TEXT NOT NULL,
	prompt TEXT NOT NULL DEFAULT '',
	payload TEXT,
	status TEXT NOT NULL DEFAULT 'PENDING',
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_cue_requests_agent ON cue_requests(agent_id);
CREATE INDEX IF NOT EXISTS idx_cue_requests_status ON cue_requests(status);
CREATE INDEX IF NOT EXISTS idx_cue_requests_created ON cue_requests(created_at);

CREATE TABLE IF NOT EXISTS cue_responses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT UNIQUE NOT NULL REFERENCES cue_requests(request_id),
	response_json TEXT NOT NULL DEFAULT '{}',
	cancelled BOOLEAN NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_cue_responses_created ON cue_responses(created_at);

CREATE TABLE IF NOT EXISTS groups (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	agent_name TEXT NOT NULL,
	joined_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (group_id, agent_name)
);

CREATE TABLE IF NOT EXISTS conversation_meta (
	key TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	id TEXT NOT NULL,
	archived BOOLEAN NOT NULL DEFAULT 0,
	archived_at TEXT,
	deleted BOOLEAN NOT NULL DEFAULT 0,
	deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS message_queue (
	id TEXT PRIMARY KEY,
	conversation_type TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	images TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	position INTEGER
);
CREATE INDEX IF NOT EXISTS idx_message_queue_convo ON message_queue(conversation_type, conversation_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TEXT
);
`
