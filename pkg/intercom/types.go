package intercom

import (
	"encoding/json"
	"time"

	"github.com/spoolhq/spool/pkg/archive"
)

// SearchRequest is the paged search endpoint's request body.
type SearchRequest struct {
	Query      Query      `json:"query"`
	Pagination Pagination `json:"pagination"`
	Sort       Sort       `json:"sort"`
}

// Query is a filter expression: either a single field comparison or an
// operator combining nested expressions.
type Query struct {
	Operator string  `json:"operator,omitempty"`
	Field    string  `json:"field,omitempty"`
	Value    any     `json:"value,omitempty"`
	Operands []Query `json:"-"`
}

// Pagination selects a page of results.
type Pagination struct {
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

// Sort orders results; the fetch engine always sorts by creation time
// descending for deterministic paging.
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// NewDateQuery builds the filter expression for a [start, end] window.
// Unset bounds are omitted; multiple bounds combine under a logical AND.
// A fully open window matches everything via a created_at > 0 predicate.
func NewDateQuery(start, end *time.Time) Query {
	var clauses []Query
	if start != nil {
		clauses = append(clauses, Query{Field: "created_at", Operator: ">", Value: start.Unix()})
	}
	if end != nil {
		clauses = append(clauses, Query{Field: "created_at", Operator: "<", Value: end.Unix()})
	}

	switch len(clauses) {
	case 0:
		return Query{Field: "created_at", Operator: ">", Value: 0}
	case 1:
		return clauses[0]
	default:
		return Query{Operator: "AND", Operands: clauses}
	}
}

// MarshalJSON renders a combining query as {"operator","value":[...]}
// and a leaf query as {"field","operator","value"}.
func (q Query) MarshalJSON() ([]byte, error) {
	type leaf struct {
		Field    string `json:"field"`
		Operator string `json:"operator"`
		Value    any    `json:"value"`
	}
	type combined struct {
		Operator string  `json:"operator"`
		Value    []Query `json:"value"`
	}

	if len(q.Operands) > 0 {
		return json.Marshal(combined{Operator: q.Operator, Value: q.Operands})
	}
	return json.Marshal(leaf{Field: q.Field, Operator: q.Operator, Value: q.Value})
}

// SearchResponse is the paged search endpoint's response body.
type SearchResponse struct {
	Conversations []Conversation `json:"conversations"`
	TotalCount    int            `json:"total_count"`
}

// ListResponse is the basic listing endpoint's response body.
type ListResponse struct {
	Conversations []Conversation `json:"conversations"`
	TotalCount    int            `json:"total_count"`
	Pages         *Pages         `json:"pages,omitempty"`
}

// Pages carries listing pagination metadata.
type Pages struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// Conversation is the wire representation of a conversation record.
type Conversation struct {
	ID        string      `json:"id"`
	CreatedAt int64       `json:"created_at"`
	Source    Source      `json:"source"`
	Parts     PartList    `json:"conversation_parts"`
	Tags      TagList     `json:"tags"`
	Contacts  ContactList `json:"contacts"`
}

// Source is the conversation's opening message, which the transport
// keeps separate from the thread parts.
type Source struct {
	ID     string `json:"id"`
	Body   string `json:"body"`
	Author Author `json:"author"`
}

// PartList wraps the thread parts.
type PartList struct {
	Parts      []Part `json:"conversation_parts"`
	TotalCount int    `json:"total_count"`
}

// Part is a single thread entry.
type Part struct {
	ID        string `json:"id"`
	PartType  string `json:"part_type"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
	Author    Author `json:"author"`
}

// Author identifies who wrote a message on the wire.
type Author struct {
	Type  string `json:"type"`
	Email string `json:"email,omitempty"`
}

// TagList wraps the conversation's tags.
type TagList struct {
	Tags []Tag `json:"tags"`
}

// Tag is a single named tag.
type Tag struct {
	Name string `json:"name"`
}

// ContactList wraps the conversation's contacts.
type ContactList struct {
	Contacts []Contact `json:"contacts"`
}

// Contact is a customer attached to the conversation.
type Contact struct {
	Email string `json:"email"`
}

// Role maps a wire author type onto the domain role. Unknown author
// types (bots, neither user nor admin) return "".
func (a Author) Role() archive.Role {
	switch a.Type {
	case "user", "lead", "contact":
		return archive.RoleCustomer
	case "admin", "team":
		return archive.RoleAgent
	default:
		return ""
	}
}

// ToArchive normalizes the wire record into the domain model. The
// opening source message is always synthesized at index 0; thread parts
// follow in creation order. Parts that are not comments (notes,
// assignment events) and parts from unknown author types are dropped.
func (c *Conversation) ToArchive() archive.Conversation {
	conv := archive.Conversation{
		ID:        c.ID,
		CreatedAt: time.Unix(c.CreatedAt, 0).UTC(),
	}

	for _, t := range c.Tags.Tags {
		conv.Tags = append(conv.Tags, t.Name)
	}
	if len(c.Contacts.Contacts) > 0 {
		conv.CustomerEmail = c.Contacts.Contacts[0].Email
	}
	if conv.CustomerEmail == "" && c.Source.Author.Role() == archive.RoleCustomer {
		conv.CustomerEmail = c.Source.Author.Email
	}

	if c.Source.Body != "" {
		role := c.Source.Author.Role()
		if role == "" {
			role = archive.RoleCustomer
		}
		conv.Messages = append(conv.Messages, archive.Message{
			ID:        c.Source.ID,
			Role:      role,
			Body:      c.Source.Body,
			CreatedAt: conv.CreatedAt,
		})
	}

	for _, p := range c.Parts.Parts {
		if p.PartType != "comment" {
			continue
		}
		role := p.Author.Role()
		if role == "" {
			continue
		}
		conv.Messages = append(conv.Messages, archive.Message{
			ID:        p.ID,
			Role:      role,
			Body:      p.Body,
			CreatedAt: time.Unix(p.CreatedAt, 0).UTC(),
		})
	}

	return conv
}
