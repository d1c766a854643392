package sqlite

// schemaVersion is stored in PRAGMA user_version. Cached emails and labels
// from older versions are dropped and refetched.
const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id        TEXT NOT NULL,
    email          TEXT NOT NULL,
    provider       TEXT NOT NULL DEFAULT 'gmail',
    display_name   TEXT NOT NULL DEFAULT '',
    last_synced_at TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (user_id, email)
);

CREATE TABLE IF NOT EXISTS labels (
    id            TEXT NOT NULL,
    account_email TEXT NOT NULL,
    user_id       TEXT NOT NULL,
    name          TEXT NOT NULL,
    type          TEXT NOT NULL DEFAULT '',
    color         TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (user_id, id, account_email)
);

CREATE TABLE IF NOT EXISTS emails (
    id                TEXT NOT NULL,
    account_email     TEXT NOT NULL,
    user_id           TEXT NOT NULL,
    thread_id         TEXT NOT NULL DEFAULT '',
    message_id_header TEXT NOT NULL DEFAULT '',
    references_header TEXT NOT NULL DEFAULT '',
    in_reply_to       TEXT NOT NULL DEFAULT '',
    from_addr         TEXT NOT NULL DEFAULT '',
    from_name         TEXT NOT NULL DEFAULT '',
    to_addrs          TEXT NOT NULL DEFAULT '[]',
    cc_addrs          TEXT NOT NULL DEFAULT '[]',
    bcc_addrs         TEXT NOT NULL DEFAULT '[]',
    subject           TEXT NOT NULL DEFAULT '',
    snippet           TEXT NOT NULL DEFAULT '',
    body              TEXT NOT NULL DEFAULT '',
    date              TEXT NOT NULL,
    is_read           BOOLEAN NOT NULL DEFAULT FALSE,
    has_attachments   BOOLEAN NOT NULL DEFAULT FALSE,
    label_ids         TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (user_id, id, account_email)
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_user_date ON emails(user_id, date DESC);
CREATE INDEX IF NOT EXISTS idx_emails_thread ON emails(account_email, thread_id);
CREATE INDEX IF NOT EXISTS idx_labels_user ON labels(user_id, account_email);
`
