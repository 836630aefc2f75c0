package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/users"
)

// Comment manages the append-only discussion log on workflow runs. There
// is no edit or delete path; the log doubles as an audit trail.
type Comment struct {
	persistence persistence.Persistence
	directory   users.Directory
	validate    *validator.Validate
}

// NewComment creates a new comment service. The directory may be nil.
func NewComment(persistence persistence.Persistence, directory users.Directory) *Comment {
	return &Comment{
		persistence: persistence,
		directory:   directory,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Add appends a comment to a run. The target run must exist.
func (c *Comment) Add(ctx context.Context, instanceID string, comment *models.WorkflowComment) (*models.WorkflowComment, error) {
	if comment == nil {
		return nil, NewValidationError("Add", "comment is required", ErrInvalidRequest)
	}

	comment.WorkflowInstanceID = instanceID

	err := c.validate.Struct(comment)
	if err != nil {
		return nil, NewValidationError("Add", err.Error(), ErrInvalidRequest)
	}

	comment.ID = ""

	err = c.persistence.CommentRepository().Add(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	return comment, nil
}

// FetchByInstance returns a run's comments newest-first with author
// display fields resolved through the user directory.
func (c *Comment) FetchByInstance(ctx context.Context, instanceID string) ([]*models.CommentWithAuthor, error) {
	instance, err := c.persistence.InstanceRepository().GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if instance == nil {
		return nil, persistence.NewInstanceError("FetchByInstance", instanceID, ErrInstanceNotFound)
	}

	comments, err := c.persistence.CommentRepository().ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	enriched := make([]*models.CommentWithAuthor, 0, len(comments))

	for _, comment := range comments {
		withAuthor := &models.CommentWithAuthor{WorkflowComment: *comment}

		if c.directory != nil {
			user, lookupErr := c.directory.Lookup(ctx, comment.AuthorID)
			if lookupErr == nil && user != nil {
				withAuthor.AuthorName = user.DisplayName
				withAuthor.AuthorRole = user.Role
			}
		}

		enriched = append(enriched, withAuthor)
	}

	return enriched, nil
}
