package types

import "time"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// MessageKind classifies a message payload.
type MessageKind string

const (
	// KindText is a plain text message.
	KindText MessageKind = "text"
	// KindImage carries a caption plus an embeddable image payload.
	KindImage MessageKind = "image"
	// KindCode carries reply text plus an extracted runnable code block.
	KindCode MessageKind = "code"
)

// Message is a single entry in a mode's conversation history. Messages are
// never mutated after creation; histories are ordered and append-only.
type Message struct {
	// ID is unique across the whole store. IDs are ULIDs, so they sort by
	// generation time.
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Sender    Sender      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      MessageKind `json:"kind"`

	// Code is set when Kind is KindCode.
	Code string `json:"code,omitempty"`
	// ImageURL is a data URI, set when Kind is KindImage.
	ImageURL string `json:"image_url,omitempty"`
}

// CodeSnippet is a named, runnable HTML document extracted from (or promoted
// out of) a web/app mode reply. Identity is the ID; Name is a display label
// derived from the snippet count at creation time and may repeat after
// deletions.
type CodeSnippet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HTML      string    `json:"html"`
	Timestamp time.Time `json:"timestamp"`
}
