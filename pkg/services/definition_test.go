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

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:      "Client Onboarding",
		Category:  "sales",
		CreatedBy: "user-1",
		Steps: []*models.WorkflowStep{
			{StepOrder: 1, Name: "Collect details", StepType: "task", RequiredRole: models.RoleSalesRep},
			{StepOrder: 2, Name: "Approve account", StepType: "approval", RequiredRole: models.RoleSalesLeader},
		},
	}
}

func TestDefinition_Create_AppliesDefaults(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())

	created, err := svc.Create(context.Background(), validWorkflow())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.TriggerTypeManual, created.TriggerType)
	assert.Equal(t, models.WorkflowStatusActive, created.Status)
	assert.Equal(t, models.PriorityMedium, created.Priority)
}

func TestDefinition_Create_NilWorkflow(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())

	_, err := svc.Create(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestDefinition_Create_RejectsShortName(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())

	workflow := validWorkflow()
	workflow.Name = "ab"

	_, err := svc.Create(context.Background(), workflow)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestDefinition_Create_RejectsNonIncreasingStepOrder(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())

	workflow := validWorkflow()
	workflow.Steps[1].StepOrder = 1

	_, err := svc.Create(context.Background(), workflow)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrStepOrderNotGreater)
}

func TestDefinition_Update_Partial(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())
	ctx := context.Background()

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)

	name := "Client Onboarding v2"
	status := models.WorkflowStatusArchived

	updated, err := svc.Update(ctx, created.ID, services.UpdateWorkflowRequest{
		Name:   &name,
		Status: &status,
	})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, status, updated.Status)
	assert.Equal(t, created.Category, updated.Category)
	assert.Len(t, updated.Steps, 2)
}

func TestDefinition_Update_Missing(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())

	name := "whatever"

	_, err := svc.Update(context.Background(), "missing", services.UpdateWorkflowRequest{Name: &name})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestDefinition_AddStep_EnforcesMonotonicOrder(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())
	ctx := context.Background()

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)

	_, err = svc.AddStep(ctx, created.ID, &models.WorkflowStep{
		StepOrder:    2,
		Name:         "Duplicate order",
		StepType:     "task",
		RequiredRole: models.RoleAdmin,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrStepOrderNotGreater)

	step, err := svc.AddStep(ctx, created.ID, &models.WorkflowStep{
		StepOrder:    10,
		Name:         "Final review",
		StepType:     "approval",
		RequiredRole: models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, step.ID)

	fetched, err := svc.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Steps, 3)
	assert.Equal(t, 10, fetched.Steps[2].StepOrder)
}

func TestDefinition_UpdateStep(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())
	ctx := context.Background()

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)

	assignee := "user-9"

	updated, err := svc.UpdateStep(ctx, created.ID, created.Steps[0].ID, services.UpdateStepRequest{
		AssigneeID: &assignee,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, assignee, *updated.AssigneeID)

	// Empty assignee clears the default.
	empty := ""

	updated, err = svc.UpdateStep(ctx, created.ID, created.Steps[0].ID, services.UpdateStepRequest{
		AssigneeID: &empty,
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssigneeID)
}

func TestDefinition_DeleteStep_Missing(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())
	ctx := context.Background()

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)

	err = svc.DeleteStep(ctx, created.ID, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsStepNotFound(err))
}

func TestDefinition_Delete(t *testing.T) {
	t.Parallel()

	svc := services.NewDefinition(memory.NewPersistence())
	ctx := context.Background()

	created, err := svc.Create(ctx, validWorkflow())
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
