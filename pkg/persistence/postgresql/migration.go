package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE events (
				id UUID PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				org_slug VARCHAR(255) NOT NULL,
				event_type VARCHAR(100) NOT NULL,
				entity_type VARCHAR(100),
				entity_id VARCHAR(255),
				payload JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_events_org_id ON events(org_id);
			CREATE INDEX idx_events_event_type ON events(event_type);
			CREATE INDEX idx_events_processed_at ON events(processed_at);

			CREATE TABLE automations (
				id UUID PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published')),
				trigger_type VARCHAR(100) NOT NULL,
				trigger_value VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_org_trigger ON automations(org_id, status, trigger_type);

			CREATE TABLE workflow_steps (
				id UUID PRIMARY KEY,
				automation_id UUID NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				step_order INT NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				action_type VARCHAR(50),
				config JSONB DEFAULT '{}',
				UNIQUE (automation_id, step_order)
			);

			CREATE TABLE workflow_runs (
				id UUID PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				automation_id UUID NOT NULL,
				event_id UUID NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				error TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflow_runs_automation ON workflow_runs(automation_id);
			CREATE INDEX idx_workflow_runs_event ON workflow_runs(event_id);
			CREATE INDEX idx_workflow_runs_status ON workflow_runs(status);

			CREATE TABLE workflow_run_steps (
				id UUID PRIMARY KEY,
				run_id UUID NOT NULL REFERENCES workflow_runs(id) ON DELETE CASCADE,
				step_id UUID NOT NULL,
				step_order INT NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				action_type VARCHAR(50),
				status VARCHAR(50) NOT NULL CHECK (status IN ('completed', 'failed')),
				result JSONB,
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_run_steps_run ON workflow_run_steps(run_id);

			CREATE TABLE wait_timers (
				id UUID PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				run_id UUID NOT NULL,
				automation_id UUID NOT NULL,
				event_id UUID NOT NULL,
				resume_order INT NOT NULL,
				context JSONB,
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				fired_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_wait_timers_due ON wait_timers(due_at) WHERE fired_at IS NULL;

			CREATE TABLE messages (
				id UUID PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				run_id UUID,
				to_number VARCHAR(50) NOT NULL,
				body TEXT,
				sid VARCHAR(255),
				status VARCHAR(50),
				direction VARCHAR(20) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_messages_org ON messages(org_id);

			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				run_id UUID,
				entity_type VARCHAR(100),
				entity_id VARCHAR(255),
				title TEXT NOT NULL,
				status VARCHAR(50) NOT NULL,
				due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_tasks_entity ON tasks(entity_type, entity_id);

			-- Business records targeted by the update_field action.
			CREATE TABLE contacts (
				id VARCHAR(255) PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				name VARCHAR(255),
				phone VARCHAR(50),
				email VARCHAR(255),
				stage VARCHAR(100),
				owner VARCHAR(255),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE quotes (
				id VARCHAR(255) PRIMARY KEY,
				org_id VARCHAR(255) NOT NULL,
				contact_id VARCHAR(255),
				status VARCHAR(100),
				total NUMERIC,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
