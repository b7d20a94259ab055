// Package archive defines the domain model for the conversation archive:
// conversations, messages, search filters, and the sync-state descriptor
// that accompanies cached results. These are the value types exchanged
// between backends and callers; they are immutable once returned.
package archive

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleCustomer marks a message authored by the customer (user or lead).
	RoleCustomer Role = "customer"

	// RoleAgent marks a message authored by a support agent.
	RoleAgent Role = "agent"
)

// Message is a single message within a conversation. Ordering within a
// Conversation is creation-time ascending; the opening customer message
// always occupies index 0.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a single conversation record from the archive.
type Conversation struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Messages      []Message `json:"messages"`
}

// HasCustomerMessage reports whether at least one message in the
// conversation was authored by the customer. Conversations without any
// customer message are not actionable for analysis and are discarded by
// the fetch engine.
func (c *Conversation) HasCustomerMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleCustomer {
			return true
		}
	}
	return false
}

// DefaultLimit is the result limit applied when Filters.Limit is zero.
const DefaultLimit = 50

// Filters narrows a conversation search. Zero-value fields are unset:
// nil time bounds mean an open interval and an empty tag set matches
// everything.
type Filters struct {
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	Limit         int        `json:"limit,omitempty"`
}

// EffectiveLimit returns the filter's limit, or DefaultLimit when unset.
func (f Filters) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// TimeRange is a half-open [Start, End) interval produced by the
// natural-language timeframe interpreter.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
