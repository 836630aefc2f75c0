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

func validTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		Name:      "Standard Delivery",
		Category:  "logistics",
		CreatedBy: "user-1",
		Blueprint: models.WorkflowBlueprint{
			Metadata: models.BlueprintMetadata{
				Name:     "Standard Delivery",
				Category: "logistics",
				Priority: models.PriorityHigh,
			},
			Steps: []models.StepBlueprint{
				{StepOrder: 1, Name: "Pick stock", StepType: "task", RequiredRole: models.RoleSalesRep},
				{StepOrder: 2, Name: "Arrange transport", StepType: "task", RequiredRole: models.RoleSalesRep},
				{StepOrder: 3, Name: "Confirm delivery", StepType: "approval", RequiredRole: models.RoleSalesLeader},
			},
		},
	}
}

func TestTemplate_Create(t *testing.T) {
	t.Parallel()

	svc := services.NewTemplate(memory.NewPersistence(), nil)

	created, err := svc.Create(context.Background(), validTemplate())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.UsageCount)
}

func TestTemplate_Create_EmptyBlueprint(t *testing.T) {
	t.Parallel()

	svc := services.NewTemplate(memory.NewPersistence(), nil)

	template := validTemplate()
	template.Blueprint.Steps = nil

	_, err := svc.Create(context.Background(), template)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestTemplate_Create_RejectsNonIncreasingBlueprintOrder(t *testing.T) {
	t.Parallel()

	svc := services.NewTemplate(memory.NewPersistence(), nil)

	template := validTemplate()
	template.Blueprint.Steps[2].StepOrder = 2

	_, err := svc.Create(context.Background(), template)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBlueprintStepOrder)
}

func TestTemplate_FetchByID_Missing(t *testing.T) {
	t.Parallel()

	svc := services.NewTemplate(memory.NewPersistence(), nil)

	_, err := svc.FetchByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsTemplateNotFound(err))
}

func TestTemplate_Instantiate(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	templates := services.NewTemplate(p, nil)
	instances := services.NewInstance(p, nil)
	ctx := context.Background()

	created, err := templates.Create(ctx, validTemplate())
	require.NoError(t, err)

	result, err := templates.Instantiate(ctx, created.ID, services.InstantiateRequest{
		StartedBy:    "user-2",
		InstanceName: "Delivery for ACME",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Workflow.ID)
	require.NotEmpty(t, result.Instance.ID)
	assert.Equal(t, result.Workflow.ID, result.Instance.WorkflowID)
	assert.Equal(t, models.PriorityHigh, result.Instance.Priority)
	assert.Equal(t, "user-2", result.Workflow.CreatedBy)
	assert.Len(t, result.Workflow.Steps, 3)

	details, err := instances.FetchByID(ctx, result.Instance.ID)
	require.NoError(t, err)
	assert.Len(t, details.StepInstances, 3)
	assert.Equal(t, models.InstanceStatusPending, details.Status)

	fetched, err := templates.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.UsageCount)

	// A second instantiation moves the counter by exactly one again.
	_, err = templates.Instantiate(ctx, created.ID, services.InstantiateRequest{
		StartedBy:    "user-2",
		InstanceName: "Delivery for Beta",
	})
	require.NoError(t, err)

	fetched, err = templates.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.UsageCount)
}

func TestTemplate_Instantiate_InvalidRequestLeavesCounter(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	templates := services.NewTemplate(p, nil)
	ctx := context.Background()

	created, err := templates.Create(ctx, validTemplate())
	require.NoError(t, err)

	_, err = templates.Instantiate(ctx, created.ID, services.InstantiateRequest{
		InstanceName: "no starter",
	})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))

	fetched, err := templates.FetchByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fetched.UsageCount)
}

func TestTemplate_Instantiate_Missing(t *testing.T) {
	t.Parallel()

	templates := services.NewTemplate(memory.NewPersistence(), nil)

	_, err := templates.Instantiate(context.Background(), "missing", services.InstantiateRequest{
		StartedBy:    "user-1",
		InstanceName: "x",
	})
	require.Error(t, err)
	assert.True(t, persistence.IsTemplateNotFound(err))
}
