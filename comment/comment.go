// Package comment defines the normalized chat message model shared by source
// adapters, the moderation pipeline, and the feed.
package comment

import "time"

// Comment is the unified unit of inbound content from any source.
// Raw carries the source's original payload untouched, for audit and debug
// exports only; nothing in the pipeline interprets it.
type Comment struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Author    string    `json:"author"`
	AuthorID  string    `json:"authorId,omitempty"`
	Message   string    `json:"message"`
	Avatar    string    `json:"avatar,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"raw,omitempty"`
}

// Enriched is an approved comment augmented with moderation-derived and
// manually-set display flags. Instances are owned by the feed manager;
// callers only ever see copies.
type Enriched struct {
	Comment
	Highlighted bool      `json:"highlighted"`
	Pinned      bool      `json:"pinned"`
	ApprovedAt  time.Time `json:"approvedAt"`
}
