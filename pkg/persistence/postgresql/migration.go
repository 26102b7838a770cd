package postgresql

// migrations returns the schema migrations for the orchestration tables,
// keyed by version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_executions (
				id UUID PRIMARY KEY,
				workflow_type TEXT NOT NULL,
				input JSONB,
				status TEXT NOT NULL,
				current_step_index INTEGER NOT NULL DEFAULT 0,
				error_reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_executions_status
				ON workflow_executions (status, created_at);

			CREATE TABLE IF NOT EXISTS activity_invocations (
				id UUID PRIMARY KEY,
				execution_id TEXT NOT NULL,
				step_name TEXT NOT NULL,
				attempt_number INTEGER NOT NULL,
				status TEXT NOT NULL,
				idempotency_key TEXT NOT NULL,
				result JSONB,
				error_reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			-- At most one succeeded invocation per (execution, step).
			CREATE UNIQUE INDEX IF NOT EXISTS uniq_invocation_succeeded
				ON activity_invocations (execution_id, step_name)
				WHERE status = 'succeeded';

			CREATE INDEX IF NOT EXISTS idx_invocations_execution
				ON activity_invocations (execution_id, created_at);

			CREATE TABLE IF NOT EXISTS investments (
				id UUID PRIMARY KEY,
				investor_id TEXT NOT NULL,
				property_id TEXT NOT NULL,
				amount BIGINT NOT NULL,
				payment_reference TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_investments_property
				ON investments (property_id, status);

			CREATE TABLE IF NOT EXISTS transactions (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				type TEXT NOT NULL,
				amount BIGINT NOT NULL,
				reference_id TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_transactions_user
				ON transactions (user_id, created_at);

			CREATE TABLE IF NOT EXISTS wallet_ledger_entries (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				amount BIGINT NOT NULL,
				reference_id TEXT NOT NULL,
				balance_after BIGINT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_ledger_user
				ON wallet_ledger_entries (user_id, created_at);

			CREATE TABLE IF NOT EXISTS distribution_batches (
				id UUID PRIMARY KEY,
				property_id TEXT NOT NULL,
				total_amount BIGINT NOT NULL,
				distribution_date TIMESTAMP WITH TIME ZONE NOT NULL,
				status TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_batches_due
				ON distribution_batches (status, distribution_date);

			CREATE TABLE IF NOT EXISTS distribution_results (
				batch_id UUID NOT NULL REFERENCES distribution_batches (id),
				investment_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				amount BIGINT NOT NULL,
				status TEXT NOT NULL,
				failure_reason TEXT NOT NULL DEFAULT '',
				position INTEGER NOT NULL,
				PRIMARY KEY (batch_id, investment_id)
			);

			CREATE TABLE IF NOT EXISTS compensation_escalations (
				id UUID PRIMARY KEY,
				execution_id TEXT NOT NULL,
				step_name TEXT NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved_at TIMESTAMP WITH TIME ZONE
			);
		`,
	}
}
