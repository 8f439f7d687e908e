package storage

import "fmt"

// Schema returns the idempotent DDL for all tables, in dependency order
func Schema(t Tables) []string {
	t = t.WithDefaults()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            BIGSERIAL PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('admin', 'volunteer')),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Users),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            BIGSERIAL PRIMARY KEY,
			name          TEXT NOT NULL,
			address       TEXT NOT NULL DEFAULT '',
			contact_name  TEXT NOT NULL DEFAULT '',
			contact_email TEXT NOT NULL DEFAULT '',
			contact_phone TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.Organisations),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			id              BIGSERIAL PRIMARY KEY,
			organisation_id BIGINT NOT NULL REFERENCES %[2]s (id) ON DELETE RESTRICT,
			assigned_to     BIGINT NULL REFERENCES %[3]s (id) ON DELETE RESTRICT,
			progress_stage  TEXT NOT NULL DEFAULT 'available'
				CHECK (progress_stage IN ('available', 'reserved', 'in_delivery', 'completed', 'cancelled_in_delivery')),
			intake_priority TEXT NOT NULL DEFAULT 'medium'
				CHECK (intake_priority IN ('low', 'medium', 'high')),
			follow_up       BOOLEAN NOT NULL DEFAULT FALSE,
			deadline_date   DATE NULL,
			dropoff_date    TIMESTAMPTZ NULL,
			name            TEXT NOT NULL,
			address         TEXT NOT NULL DEFAULT '',
			weight          NUMERIC NULL,
			value           NUMERIC NULL,
			size            TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT %[1]s_assignee_required
				CHECK (progress_stage NOT IN ('reserved', 'in_delivery') OR assigned_to IS NOT NULL)
		)`, t.Jobs, t.Organisations, t.Users),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_stage_idx ON %[1]s (progress_stage)`, t.Jobs),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_assigned_to_idx ON %[1]s (assigned_to)`, t.Jobs),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_created_idx ON %[1]s (created_at DESC, id DESC)`, t.Jobs),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			event_id    UUID NOT NULL UNIQUE,
			job_id      BIGINT NOT NULL,
			actor_id    BIGINT NOT NULL,
			actor_role  TEXT NOT NULL,
			event       TEXT NOT NULL,
			from_stage  TEXT NOT NULL,
			to_stage    TEXT NOT NULL,
			follow_up   BOOLEAN NOT NULL DEFAULT FALSE,
			occurred_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, t.JobEvents),

		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_job_idx ON %[1]s (job_id, occurred_at)`, t.JobEvents),
	}
}
