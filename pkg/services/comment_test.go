package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/persistence/memory"
	"github.com/stonebase/masonflow/pkg/services"
)

func setupCommentTest(t *testing.T) (*services.Comment, *models.WorkflowInstance) {
	t.Helper()

	p := memory.NewPersistence()
	definitions := services.NewDefinition(p)
	instances := services.NewInstance(p, testDirectory())
	comments := services.NewComment(p, testDirectory())
	ctx := context.Background()

	workflow, err := definitions.Create(ctx, validWorkflow())
	require.NoError(t, err)

	instance, err := instances.Create(ctx, &models.WorkflowInstance{
		WorkflowID:   workflow.ID,
		StartedBy:    "user-1",
		InstanceName: "commented run",
	})
	require.NoError(t, err)

	return comments, instance
}

func TestComment_AddAndFetch(t *testing.T) {
	t.Parallel()

	comments, instance := setupCommentTest(t)
	ctx := context.Background()

	created, err := comments.Add(ctx, instance.ID, &models.WorkflowComment{
		AuthorID: "user-2",
		Body:     "stock is reserved",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	list, err := comments.FetchByInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "stock is reserved", list[0].Body)
	assert.Equal(t, "Bruno Rep", list[0].AuthorName)
	assert.Equal(t, models.RoleSalesRep, list[0].AuthorRole)
}

func TestComment_Add_MissingInstance(t *testing.T) {
	t.Parallel()

	comments, _ := setupCommentTest(t)

	_, err := comments.Add(context.Background(), "missing", &models.WorkflowComment{
		AuthorID: "user-1",
		Body:     "hello",
	})
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}

func TestComment_Add_MissingBody(t *testing.T) {
	t.Parallel()

	comments, instance := setupCommentTest(t)

	_, err := comments.Add(context.Background(), instance.ID, &models.WorkflowComment{
		AuthorID: "user-1",
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestComment_FetchByInstance_UnknownAuthorKeepsRawID(t *testing.T) {
	t.Parallel()

	comments, instance := setupCommentTest(t)
	ctx := context.Background()

	_, err := comments.Add(ctx, instance.ID, &models.WorkflowComment{
		AuthorID: "user-gone",
		Body:     "left the company",
	})
	require.NoError(t, err)

	list, err := comments.FetchByInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].AuthorName)
	assert.Equal(t, "user-gone", list[0].AuthorID)
}

func TestComment_FetchByInstance_MissingInstance(t *testing.T) {
	t.Parallel()

	comments, _ := setupCommentTest(t)

	_, err := comments.FetchByInstance(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}
