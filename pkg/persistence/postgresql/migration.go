package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions and their ordered steps
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL,
				priority VARCHAR(20) NOT NULL CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
				trigger_type VARCHAR(20) NOT NULL CHECK (trigger_type IN ('manual', 'automatic')),
				status VARCHAR(20) NOT NULL CHECK (status IN ('active', 'archived')),
				created_by VARCHAR(255) NOT NULL,
				estimated_duration VARCHAR(100) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_category ON workflows(category);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_steps (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_order INT NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				step_type VARCHAR(100) NOT NULL,
				required_role VARCHAR(50) NOT NULL,
				estimated_duration VARCHAR(100) NOT NULL DEFAULT '',
				is_optional BOOLEAN NOT NULL DEFAULT FALSE,
				assignee_id VARCHAR(255),
				UNIQUE (workflow_id, step_order)
			);

			CREATE INDEX idx_workflow_steps_workflow_id ON workflow_steps(workflow_id);

			-- Runs. workflow_id carries no foreign key on purpose: deleting a
			-- definition leaves its already-started runs readable through
			-- their own step-instance snapshot.
			CREATE TABLE workflow_instances (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				started_by VARCHAR(255) NOT NULL,
				instance_name VARCHAR(255) NOT NULL,
				assigned_to VARCHAR(255),
				client_id VARCHAR(255),
				quote_id VARCHAR(255),
				product_id VARCHAR(255),
				due_date TIMESTAMP WITH TIME ZONE,
				priority VARCHAR(20) NOT NULL CHECK (priority IN ('low', 'medium', 'high', 'urgent')),
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'in_progress', 'completed')),
				progress INT NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflow_instances_workflow_id ON workflow_instances(workflow_id);
			CREATE INDEX idx_workflow_instances_assigned_to ON workflow_instances(assigned_to);
			CREATE INDEX idx_workflow_instances_started_by ON workflow_instances(started_by);
			CREATE INDEX idx_workflow_instances_status ON workflow_instances(status);
			CREATE INDEX idx_workflow_instances_started_at ON workflow_instances(started_at);

			-- Per-run step snapshot. step_id is metadata only, never
			-- re-resolved, so no foreign key into workflow_steps.
			CREATE TABLE workflow_step_instances (
				id UUID PRIMARY KEY,
				workflow_instance_id UUID NOT NULL REFERENCES workflow_instances(id) ON DELETE CASCADE,
				step_id UUID NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'completed')),
				assigned_to VARCHAR(255),
				completed_at TIMESTAMP WITH TIME ZONE,
				output TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_workflow_step_instances_instance_id ON workflow_step_instances(workflow_instance_id);
			CREATE INDEX idx_workflow_step_instances_status ON workflow_step_instances(status);

			CREATE TABLE workflow_templates (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(100) NOT NULL DEFAULT '',
				blueprint JSONB NOT NULL,
				usage_count INT NOT NULL DEFAULT 0,
				created_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_templates_category ON workflow_templates(category);

			CREATE TABLE workflow_comments (
				id UUID PRIMARY KEY,
				workflow_instance_id UUID NOT NULL REFERENCES workflow_instances(id) ON DELETE CASCADE,
				author_id VARCHAR(255) NOT NULL,
				body TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_comments_instance_id ON workflow_comments(workflow_instance_id);
			CREATE INDEX idx_workflow_comments_created_at ON workflow_comments(created_at);
		`,
	}
}
