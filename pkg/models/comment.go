package models

import "time"

// WorkflowComment is an append-only note attached to a run. There is no
// edit or delete; the log doubles as an audit trail.
type WorkflowComment struct {
	ID                 string    `json:"id"`
	WorkflowInstanceID string    `json:"workflow_instance_id"`
	AuthorID           string    `json:"author_id" validate:"required"`
	Body               string    `json:"body"      validate:"required"`
	CreatedAt          time.Time `json:"created_at"`
}

// CommentWithAuthor joins a comment with display fields resolved through
// the user directory.
type CommentWithAuthor struct {
	WorkflowComment

	AuthorName string `json:"author_name,omitempty"`
	AuthorRole string `json:"author_role,omitempty"`
}
