//go:build integration

package containers

// schemaDDL is the logical courier schema, applied to the throwaway
// integration database. Production migrations live with the deployment.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS messaging_event_logs (
	id           BIGSERIAL PRIMARY KEY,
	event_status TEXT        NOT NULL,
	event_type   TEXT        NOT NULL,
	data         JSONB       NOT NULL DEFAULT '{}',
	message_id   UUID        NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_logs_message
	ON messaging_event_logs (message_id, created_at);

CREATE TABLE IF NOT EXISTS message_event_summary (
	id                      BIGSERIAL PRIMARY KEY,
	messaging_event_logs_id BIGINT      NOT NULL,
	message_id              UUID        NOT NULL UNIQUE,
	organisation_id         UUID        NOT NULL,
	subject                 TEXT        NOT NULL,
	event_status            TEXT        NOT NULL,
	event_type              TEXT        NOT NULL,
	data                    JSONB       NOT NULL DEFAULT '{}',
	scheduled_at            TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              UUID PRIMARY KEY,
	subject         TEXT        NOT NULL,
	body            TEXT        NOT NULL DEFAULT '',
	rich_body       TEXT        NOT NULL DEFAULT '',
	excerpt         TEXT        NOT NULL DEFAULT '',
	organisation_id UUID        NOT NULL,
	user_id         UUID        NOT NULL,
	security_level  TEXT        NOT NULL DEFAULT 'public',
	attachment_ids  UUID[]      NOT NULL DEFAULT '{}',
	transports      TEXT[]      NOT NULL DEFAULT '{}',
	scheduled_at    TIMESTAMPTZ,
	is_seen         BOOLEAN     NOT NULL DEFAULT FALSE,
	is_delivered    BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS message_providers (
	id              UUID PRIMARY KEY,
	organisation_id UUID        NOT NULL,
	channel_type    TEXT        NOT NULL,
	name            TEXT        NOT NULL,
	credentials     JSONB       NOT NULL DEFAULT '{}',
	is_primary      BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_providers_single_primary
	ON message_providers (organisation_id, channel_type)
	WHERE is_primary;
`
