package postgres

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(50) NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE trigger_instances (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				connector_trigger_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL CHECK (kind IN ('schedule', 'poll', 'webhook')),
				active BOOLEAN NOT NULL DEFAULT false,
				next_due_at TIMESTAMP WITH TIME ZONE,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- The scanner reads active schedule and poll instances each
			-- tick; the router fans out by connector trigger id.
			CREATE INDEX idx_trigger_instances_scan ON trigger_instances(kind, active, next_due_at);
			CREATE INDEX idx_trigger_instances_connector ON trigger_instances(connector_trigger_id, kind, active);
			CREATE INDEX idx_trigger_instances_workflow ON trigger_instances(workflow_id);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				version BIGINT NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);

			CREATE TABLE poll_watermarks (
				trigger_instance_id VARCHAR(255) PRIMARY KEY,
				last_seen_millis BIGINT,
				last_polled_at TIMESTAMP WITH TIME ZONE
			);
		`,
	}
}
