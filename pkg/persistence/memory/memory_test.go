package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonebase/masonflow/pkg/models"
	"github.com/stonebase/masonflow/pkg/persistence"
	"github.com/stonebase/masonflow/pkg/persistence/memory"
)

func testWorkflow(stepCount int) *models.Workflow {
	steps := make([]*models.WorkflowStep, 0, stepCount)
	for i := 1; i <= stepCount; i++ {
		steps = append(steps, &models.WorkflowStep{
			StepOrder:    i,
			Name:         "Step " + string(rune('A'+i-1)),
			StepType:     "task",
			RequiredRole: models.RoleSalesRep,
		})
	}

	return &models.Workflow{
		Name:        "Quote Approval",
		Description: "Approve an outgoing quote",
		Category:    "sales",
		Priority:    models.PriorityMedium,
		TriggerType: models.TriggerTypeManual,
		Status:      models.WorkflowStatusActive,
		CreatedBy:   "user-1",
		Steps:       steps,
	}
}

func createInstance(ctx context.Context, t *testing.T, p *memory.Persistence, workflowID string) *models.WorkflowInstance {
	t.Helper()

	instance := &models.WorkflowInstance{
		WorkflowID:   workflowID,
		StartedBy:    "user-1",
		InstanceName: "Run for ACME",
		Priority:     models.PriorityMedium,
	}

	err := p.InstanceRepository().Create(ctx, instance)
	require.NoError(t, err)

	return instance
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(2)
	err := p.WorkflowRepository().Save(ctx, workflow)
	require.NoError(t, err)
	require.NotEmpty(t, workflow.ID)

	fetched, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "Quote Approval", fetched.Name)
	require.Len(t, fetched.Steps, 2)
	assert.Equal(t, 1, fetched.Steps[0].StepOrder)
	assert.Equal(t, 2, fetched.Steps[1].StepOrder)
	assert.Equal(t, workflow.ID, fetched.Steps[0].WorkflowID)

	// Mutating the fetched copy must not leak into the store.
	fetched.Name = "changed"
	fetched.Steps[0].Name = "changed"

	again, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quote Approval", again.Name)
	assert.NotEqual(t, "changed", again.Steps[0].Name)
}

func TestWorkflowRepository_GetByID_Missing(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()

	fetched, err := p.WorkflowRepository().GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestWorkflowRepository_SaveStep_MissingWorkflow(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()

	err := p.WorkflowRepository().SaveStep(context.Background(), "missing", &models.WorkflowStep{
		StepOrder:    1,
		Name:         "Step",
		StepType:     "task",
		RequiredRole: models.RoleAdmin,
	})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_DeleteCascadesSteps(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(3)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	deleted, err := p.WorkflowRepository().Delete(ctx, workflow.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	fetched, err := p.WorkflowRepository().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	deleted, err = p.WorkflowRepository().Delete(ctx, workflow.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestInstanceRepository_CreateSnapshotsSteps(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	assignee := "user-7"
	workflow := testWorkflow(3)
	workflow.Steps[0].AssigneeID = &assignee
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	assert.Equal(t, models.InstanceStatusPending, instance.Status)
	assert.Equal(t, 0, instance.Progress)
	assert.Nil(t, instance.CompletedAt)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Len(t, details.StepInstances, 3)

	seededAssignee := 0

	for _, si := range details.StepInstances {
		assert.Equal(t, models.StepInstanceStatusPending, si.Status)
		assert.Equal(t, instance.ID, si.WorkflowInstanceID)

		if si.AssignedTo != nil {
			assert.Equal(t, assignee, *si.AssignedTo)
			seededAssignee++
		}
	}

	assert.Equal(t, 1, seededAssignee)
}

func TestInstanceRepository_Create_MissingWorkflow(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()

	err := p.InstanceRepository().Create(context.Background(), &models.WorkflowInstance{
		WorkflowID:   "missing",
		StartedBy:    "user-1",
		InstanceName: "x",
		Priority:     models.PriorityLow,
	})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestInstanceRepository_Create_EmptyWorkflow(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(0)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	err := p.InstanceRepository().Create(ctx, &models.WorkflowInstance{
		WorkflowID:   workflow.ID,
		StartedBy:    "user-1",
		InstanceName: "x",
		Priority:     models.PriorityLow,
	})
	require.Error(t, err)
	assert.True(t, persistence.IsEmptyWorkflow(err))
}

func TestInstanceRepository_SnapshotSurvivesDefinitionEdits(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(2)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	// Grow the definition after the run started.
	err := p.WorkflowRepository().SaveStep(ctx, workflow.ID, &models.WorkflowStep{
		StepOrder:    3,
		Name:         "Added later",
		StepType:     "task",
		RequiredRole: models.RoleAdmin,
	})
	require.NoError(t, err)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)
	assert.Len(t, details.StepInstances, 2)
}

func TestInstanceRepository_CompleteStep_ProgressLifecycle(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(3)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, details.StepInstances, 3)

	expectations := []struct {
		progress int
		status   models.InstanceStatus
	}{
		{progress: 33, status: models.InstanceStatusInProgress},
		{progress: 67, status: models.InstanceStatusInProgress},
		{progress: 100, status: models.InstanceStatusCompleted},
	}

	for i, expected := range expectations {
		si, err := p.InstanceRepository().CompleteStep(ctx, details.StepInstances[i].ID, "done", "")
		require.NoError(t, err)
		assert.Equal(t, models.StepInstanceStatusCompleted, si.Status)
		require.NotNil(t, si.CompletedAt)

		current, err := p.InstanceRepository().GetByID(ctx, instance.ID)
		require.NoError(t, err)
		assert.Equal(t, expected.progress, current.Progress)
		assert.Equal(t, expected.status, current.Status)

		if expected.status == models.InstanceStatusCompleted {
			assert.NotNil(t, current.CompletedAt)
		} else {
			assert.Nil(t, current.CompletedAt)
		}
	}
}

func TestInstanceRepository_CompleteStep_StoresOutputAndNotes(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(1)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)

	si, err := p.InstanceRepository().CompleteStep(ctx, details.StepInstances[0].ID, "shipped", "left at dock")
	require.NoError(t, err)
	assert.Equal(t, "shipped", si.Output)
	assert.Equal(t, "left at dock", si.Notes)
}

func TestInstanceRepository_CompleteStep_Missing(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()

	_, err := p.InstanceRepository().CompleteStep(context.Background(), "missing", "", "")
	require.Error(t, err)
	assert.True(t, persistence.IsStepInstanceNotFound(err))
}

func TestInstanceRepository_ConcurrentCompletionsConverge(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	const stepCount = 8

	workflow := testWorkflow(stepCount)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, details.StepInstances, stepCount)

	var wg sync.WaitGroup

	for _, si := range details.StepInstances {
		wg.Add(1)

		go func(stepInstanceID string) {
			defer wg.Done()

			_, err := p.InstanceRepository().CompleteStep(ctx, stepInstanceID, "", "")
			assert.NoError(t, err)
		}(si.ID)
	}

	wg.Wait()

	final, err := p.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, models.InstanceStatusCompleted, final.Status)
	assert.NotNil(t, final.CompletedAt)
}

func TestInstanceRepository_InstanceReadableAfterWorkflowDelete(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(2)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	deleted, err := p.WorkflowRepository().Delete(ctx, workflow.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Nil(t, details.Workflow)
	assert.Len(t, details.StepInstances, 2)

	// The snapshot still completes normally without its definition.
	_, err = p.InstanceRepository().CompleteStep(ctx, details.StepInstances[0].ID, "", "")
	require.NoError(t, err)
}

func TestInstanceRepository_List_Filters(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(1)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	owner := "user-2"

	first := &models.WorkflowInstance{
		WorkflowID:   workflow.ID,
		StartedBy:    "user-1",
		InstanceName: "mine",
		AssignedTo:   &owner,
		Priority:     models.PriorityHigh,
	}
	require.NoError(t, p.InstanceRepository().Create(ctx, first))

	second := &models.WorkflowInstance{
		WorkflowID:   workflow.ID,
		StartedBy:    "user-2",
		InstanceName: "started by two",
		Priority:     models.PriorityLow,
	}
	require.NoError(t, p.InstanceRepository().Create(ctx, second))

	third := &models.WorkflowInstance{
		WorkflowID:   workflow.ID,
		StartedBy:    "user-3",
		InstanceName: "unrelated",
		Priority:     models.PriorityLow,
	}
	require.NoError(t, p.InstanceRepository().Create(ctx, third))

	assigned, err := p.InstanceRepository().List(ctx, persistence.ListInstancesOptions{AssignedTo: owner})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, first.ID, assigned[0].ID)

	involving, err := p.InstanceRepository().List(ctx, persistence.ListInstancesOptions{Involving: owner})
	require.NoError(t, err)
	assert.Len(t, involving, 2)

	all, err := p.InstanceRepository().List(ctx, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInstanceRepository_DeleteCascades(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(2)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)

	require.NoError(t, p.CommentRepository().Add(ctx, &models.WorkflowComment{
		WorkflowInstanceID: instance.ID,
		AuthorID:           "user-1",
		Body:               "checking in",
	}))

	deleted, err := p.InstanceRepository().Delete(ctx, instance.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	fetched, err := p.InstanceRepository().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	_, err = p.InstanceRepository().CompleteStep(ctx, details.StepInstances[0].ID, "", "")
	require.Error(t, err)
	assert.True(t, persistence.IsStepInstanceNotFound(err))

	comments, err := p.CommentRepository().ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func testTemplate() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		Name:        "Standard Delivery",
		Description: "Delivery with confirmation",
		Category:    "logistics",
		CreatedBy:   "user-1",
		Blueprint: models.WorkflowBlueprint{
			Metadata: models.BlueprintMetadata{
				Name:     "Standard Delivery",
				Category: "logistics",
				Priority: models.PriorityHigh,
			},
			Steps: []models.StepBlueprint{
				{StepOrder: 1, Name: "Pick stock", StepType: "task", RequiredRole: models.RoleSalesRep},
				{StepOrder: 2, Name: "Confirm delivery", StepType: "approval", RequiredRole: models.RoleSalesLeader},
			},
		},
	}
}

func blueprintWorkflow(template *models.WorkflowTemplate) *models.Workflow {
	steps := make([]*models.WorkflowStep, 0, len(template.Blueprint.Steps))
	for _, bp := range template.Blueprint.Steps {
		steps = append(steps, &models.WorkflowStep{
			StepOrder:    bp.StepOrder,
			Name:         bp.Name,
			StepType:     bp.StepType,
			RequiredRole: bp.RequiredRole,
		})
	}

	return &models.Workflow{
		Name:        template.Blueprint.Metadata.Name,
		Category:    template.Blueprint.Metadata.Category,
		Priority:    template.Blueprint.Metadata.Priority,
		TriggerType: models.TriggerTypeManual,
		Status:      models.WorkflowStatusActive,
		CreatedBy:   "user-1",
		Steps:       steps,
	}
}

func TestTemplateRepository_Instantiate(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	template := testTemplate()
	require.NoError(t, p.TemplateRepository().Save(ctx, template))

	workflow := blueprintWorkflow(template)
	instance := &models.WorkflowInstance{
		StartedBy:    "user-1",
		InstanceName: "Delivery for ACME",
		Priority:     template.Blueprint.Metadata.Priority,
	}

	err := p.TemplateRepository().Instantiate(ctx, template.ID, workflow, instance)
	require.NoError(t, err)
	require.NotEmpty(t, workflow.ID)
	require.NotEmpty(t, instance.ID)
	assert.Equal(t, workflow.ID, instance.WorkflowID)

	fetched, err := p.TemplateRepository().GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.UsageCount)

	details, err := p.InstanceRepository().GetWithDetails(ctx, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Len(t, details.StepInstances, 2)
	assert.Equal(t, models.InstanceStatusPending, details.Status)
}

func TestTemplateRepository_Instantiate_MissingTemplateLeavesNothing(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	template := testTemplate()
	workflow := blueprintWorkflow(template)
	instance := &models.WorkflowInstance{
		StartedBy:    "user-1",
		InstanceName: "x",
		Priority:     models.PriorityLow,
	}

	err := p.TemplateRepository().Instantiate(ctx, "missing", workflow, instance)
	require.Error(t, err)
	assert.True(t, persistence.IsTemplateNotFound(err))

	workflows, err := p.WorkflowRepository().GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, workflows)

	instances, err := p.InstanceRepository().List(ctx, persistence.ListInstancesOptions{})
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestCommentRepository_AddAndList(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()
	ctx := context.Background()

	workflow := testWorkflow(1)
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	instance := createInstance(ctx, t, p, workflow.ID)

	base := time.Now().UTC()

	for i, body := range []string{"first", "second", "third"} {
		require.NoError(t, p.CommentRepository().Add(ctx, &models.WorkflowComment{
			WorkflowInstanceID: instance.ID,
			AuthorID:           "user-1",
			Body:               body,
			CreatedAt:          base.Add(time.Duration(i) * time.Second),
		}))
	}

	comments, err := p.CommentRepository().ListByInstance(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "third", comments[0].Body)
	assert.Equal(t, "first", comments[2].Body)
}

func TestCommentRepository_Add_MissingInstance(t *testing.T) {
	t.Parallel()

	p := memory.NewPersistence()

	err := p.CommentRepository().Add(context.Background(), &models.WorkflowComment{
		WorkflowInstanceID: "missing",
		AuthorID:           "user-1",
		Body:               "hello",
	})
	require.Error(t, err)
	assert.True(t, persistence.IsInstanceNotFound(err))
}
