package durable

// schema is applied statement by statement so drivers that reject
// multi-statement Exec still work.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id        TEXT NOT NULL,
		account_email  TEXT NOT NULL,
		provider       TEXT NOT NULL,
		account_name   TEXT NOT NULL DEFAULT '',
		last_synced_at TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		UNIQUE (user_id, account_email)
	)`,
	`CREATE TABLE IF NOT EXISTS labels (
		user_id           TEXT NOT NULL,
		account_email     TEXT NOT NULL,
		provider_label_id TEXT NOT NULL,
		name              TEXT NOT NULL,
		type              TEXT NOT NULL DEFAULT '',
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		UNIQUE (user_id, account_email, provider_label_id)
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		user_id             TEXT NOT NULL,
		account_email       TEXT NOT NULL,
		provider_message_id TEXT NOT NULL,
		thread_id           TEXT NOT NULL DEFAULT '',
		message_id_header   TEXT NOT NULL DEFAULT '',
		references_header   TEXT NOT NULL DEFAULT '',
		sender_name         TEXT NOT NULL DEFAULT '',
		sender_email        TEXT NOT NULL DEFAULT '',
		recipient_to        TEXT NOT NULL DEFAULT '[]',
		recipient_cc        TEXT NOT NULL DEFAULT '[]',
		recipient_bcc       TEXT NOT NULL DEFAULT '[]',
		subject             TEXT NOT NULL DEFAULT '',
		snippet             TEXT NOT NULL DEFAULT '',
		date_received       TEXT NOT NULL,
		is_read             BOOLEAN NOT NULL DEFAULT FALSE,
		has_attachments     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL,
		UNIQUE (user_id, account_email, provider_message_id)
	)`,
	`CREATE TABLE IF NOT EXISTS email_labels (
		user_id             TEXT NOT NULL,
		account_email       TEXT NOT NULL,
		provider_message_id TEXT NOT NULL,
		provider_label_id   TEXT NOT NULL,
		assigned_at         TEXT NOT NULL,
		PRIMARY KEY (user_id, account_email, provider_message_id, provider_label_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_user_date ON emails (user_id, date_received)`,
	`CREATE INDEX IF NOT EXISTS idx_email_labels_label ON email_labels (user_id, account_email, provider_label_id)`,
}
