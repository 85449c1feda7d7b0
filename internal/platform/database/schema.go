package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS eventables (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		initial_snapshot TEXT NOT NULL,
		lock_version BIGINT NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (kind, id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		eventable_type TEXT NOT NULL,
		eventable_id TEXT NOT NULL,
		variant TEXT NOT NULL,
		occurred_at {{ts}} NOT NULL,
		recorded_at {{ts}} NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL,
		supplier_id TEXT,
		seq BIGINT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		UNIQUE (eventable_type, eventable_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS events_applied_order
		ON events (eventable_type, eventable_id, occurred_at, seq)`,
	`CREATE TABLE IF NOT EXISTS notification_tasks (
		id TEXT PRIMARY KEY,
		topic_kind TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		action TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		published_at {{ts}}
	)`,
	`CREATE INDEX IF NOT EXISTS notification_tasks_pending
		ON notification_tasks (published_at, created_at)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		supplier_id TEXT NOT NULL,
		callback_url TEXT NOT NULL DEFAULT '',
		email_address TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		secret TEXT NOT NULL DEFAULT '',
		enabled {{bool}} NOT NULL,
		discarded {{bool}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS subscriptions_supplier ON subscriptions (supplier_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL,
		topic_kind TEXT NOT NULL,
		topic_id TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		dedup_key TEXT NOT NULL UNIQUE,
		delivered_at {{ts}},
		delivery_attempts INTEGER NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_pending
		ON notifications (delivered_at, delivery_attempts, created_at)`,
	`CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		location_type TEXT NOT NULL DEFAULT ''
	)`,
}
