// Package schema validates the three structured JSON shapes the proxy core
// accepts on its write endpoints: memory files, post requests, and vote
// requests.
package schema

import "time"

// idPattern matches the generic ID shape used for post_id and thread_id:
// letters, digits, underscore, hyphen, at most 128 characters.
const idPattern = `^[A-Za-z0-9_-]+$`

// runIDPattern permits raw UUIDs and UUID-with-checkpoint-suffix forms.
const runIDPattern = `^[a-f0-9-]+(-(cp|checkpoint)\d+)?$`

// MaxMemoryBytes is the maximum serialized size of a memory file.
const MaxMemoryBytes = 1 << 20 // 1 MiB

// MaxEntries bounds the number of entries a memory file may contain.
const MaxEntries = 10000

// Enumerated literals for MemoryFile entry fields.
const (
	TopicAISafety     = "ai_safety"
	TopicAgentDesign  = "agent_design"
	TopicMoltbookMeta = "moltbook_meta"
	TopicSocial       = "social"
	TopicTechnical    = "technical"
	TopicOther        = "other"

	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	ActionReply   = "reply"
	ActionNewPost = "new_post"
	ActionUpvote  = "upvote"
)

var validTopics = map[string]bool{
	TopicAISafety: true, TopicAgentDesign: true, TopicMoltbookMeta: true,
	TopicSocial: true, TopicTechnical: true, TopicOther: true,
}

var validSentiments = map[string]bool{
	SentimentPositive: true, SentimentNeutral: true, SentimentNegative: true,
}

var validActions = map[string]bool{
	ActionReply: true, ActionNewPost: true, ActionUpvote: true,
}

// EntryKind discriminates the MemoryEntry sum type by its "type" tag.
type EntryKind string

const (
	EntryPostSeen      EntryKind = "post_seen"
	EntryPostMade      EntryKind = "post_made"
	EntryThreadTracked EntryKind = "thread_tracked"
)

// PostSeenEntry is the post_seen variant of MemoryEntry.
type PostSeenEntry struct {
	PostID      string    `json:"post_id" validate:"required,max=128,id"`
	Timestamp   time.Time `json:"timestamp" validate:"required"`
	TopicLabel  string    `json:"topic_label" validate:"required,topic"`
	Sentiment   string    `json:"sentiment" validate:"required,sentiment"`
}

// PostMadeEntry is the post_made variant of MemoryEntry.
type PostMadeEntry struct {
	PostID    string    `json:"post_id" validate:"required,max=128,id"`
	ThreadID  string    `json:"thread_id" validate:"omitempty,max=128,id"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Action    string    `json:"action" validate:"required,memaction"`
}

// ThreadTrackedEntry is the thread_tracked variant of MemoryEntry.
type ThreadTrackedEntry struct {
	ThreadID        string    `json:"thread_id" validate:"required,max=128,id"`
	TopicLabel      string    `json:"topic_label" validate:"required,topic"`
	FirstSeen       time.Time `json:"first_seen" validate:"required"`
	LastInteraction time.Time `json:"last_interaction" validate:"required"`
}

// MemoryEntry is a tagged variant: exactly one of PostSeen, PostMade, or
// ThreadTracked is populated, selected by Type.
type MemoryEntry struct {
	Type          EntryKind
	PostSeen      *PostSeenEntry
	PostMade      *PostMadeEntry
	ThreadTracked *ThreadTrackedEntry
}

// Stats holds the memory file's running counters. All fields are
// non-negative by construction (validated via "gte=0").
type Stats struct {
	PostsRead     int `json:"posts_read" validate:"gte=0"`
	PostsMade     int `json:"posts_made" validate:"gte=0"`
	Upvotes       int `json:"upvotes" validate:"gte=0"`
	ThreadsTracked int `json:"threads_tracked" validate:"gte=0"`
}

// MemoryFile is the agent's structured, enum-constrained state snapshot
// persisted via POST /memory.
type MemoryFile struct {
	Version  int           `json:"version" validate:"eq=1"`
	RunID    string        `json:"run_id" validate:"required,max=128,runid"`
	RunStart time.Time     `json:"run_start" validate:"required"`
	RunEnd   time.Time     `json:"run_end" validate:"required"`
	Entries  []MemoryEntry `json:"entries" validate:"max=10000"`
	Stats    Stats         `json:"stats"`
}

// PostRequest is the body of POST /post.
type PostRequest struct {
	Content      string `json:"content" validate:"required,min=1,max=500"`
	ThreadID     string `json:"thread_id" validate:"omitempty,max=128,id"`
	Title        string `json:"title" validate:"omitempty,min=1,max=300"`
	SubmoltName  string `json:"submolt_name" validate:"omitempty,max=128"`
}

// VoteRequest is the body of POST /vote.
type VoteRequest struct {
	PostID string `json:"post_id" validate:"required,max=128,id"`
}
