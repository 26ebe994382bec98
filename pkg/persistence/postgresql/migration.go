package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id TEXT PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'disabled')),
				type VARCHAR(50) NOT NULL CHECK (type IN ('automatic', 'manual')),
				trigger_name VARCHAR(255) NOT NULL,
				trigger_options JSONB NOT NULL DEFAULT '{}',
				rules JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				timing JSONB NOT NULL DEFAULT '{}',
				sort_order INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_trigger_status ON workflows(trigger_name, status);
			CREATE INDEX idx_workflows_sort_order ON workflows(sort_order, id);
		`,
		2: `
			CREATE TABLE queued_events (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				due_date TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				failed BOOLEAN NOT NULL DEFAULT false,
				failure_code INT NOT NULL DEFAULT 0,
				data_item_order TEXT,
				data_item_order_item TEXT,
				data_item_customer TEXT,
				data_item_cart TEXT,
				data_item_subscription TEXT,
				data_item_product TEXT,
				data_item_card TEXT
			);

			CREATE INDEX idx_queued_events_due ON queued_events(failed, due_date);
			CREATE INDEX idx_queued_events_workflow_id ON queued_events(workflow_id);
			CREATE INDEX idx_queued_events_order ON queued_events(data_item_order);
			CREATE INDEX idx_queued_events_customer ON queued_events(data_item_customer);
			CREATE INDEX idx_queued_events_cart ON queued_events(data_item_cart);
			CREATE INDEX idx_queued_events_subscription ON queued_events(data_item_subscription);
		`,
		3: `
			CREATE TABLE workflow_logs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				data_items JSONB NOT NULL DEFAULT '{}',
				date TIMESTAMP WITH TIME ZONE NOT NULL,
				queued_event_id TEXT NOT NULL DEFAULT '',
				notes JSONB NOT NULL DEFAULT '[]',
				has_errors BOOLEAN NOT NULL DEFAULT false,
				failed BOOLEAN NOT NULL DEFAULT false,
				failure_code INT NOT NULL DEFAULT 0,
				manual BOOLEAN NOT NULL DEFAULT false,
				opened_at TIMESTAMP WITH TIME ZONE,
				clicked_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflow_logs_workflow_date ON workflow_logs(workflow_id, date DESC);
			CREATE INDEX idx_workflow_logs_data_items ON workflow_logs USING GIN (data_items jsonb_path_ops);
		`,
	}
}
