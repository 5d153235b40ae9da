package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email VARCHAR(255) UNIQUE NOT NULL,
		name VARCHAR(255) NOT NULL,
		avatar_url VARCHAR(500),
		global_role VARCHAR(50) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`DO $$ BEGIN
		CREATE TYPE space_role AS ENUM ('owner', 'admin', 'member');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,

	`DO $$ BEGIN
		CREATE TYPE invitation_status AS ENUM ('pending', 'accepted', 'declined', 'expired');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,

	`CREATE TABLE IF NOT EXISTS space (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		description TEXT,
		settings JSONB NOT NULL DEFAULT '{}',
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMP WITH TIME ZONE
	)`,

	// Slugs are unique among live spaces only; a deleted slug may be reused.
	`CREATE UNIQUE INDEX IF NOT EXISTS space_slug_live_idx ON space(slug) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS space_member (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		space_id UUID NOT NULL REFERENCES space(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role space_role NOT NULL DEFAULT 'member',
		joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE(space_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS space_member_space_idx ON space_member(space_id)`,
	`CREATE INDEX IF NOT EXISTS space_member_user_idx ON space_member(user_id)`,

	`CREATE TABLE IF NOT EXISTS space_invitation (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		space_id UUID NOT NULL REFERENCES space(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		role space_role NOT NULL DEFAULT 'member',
		status invitation_status NOT NULL DEFAULT 'pending',
		invited_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS space_invitation_email_idx ON space_invitation(email)`,
	`CREATE INDEX IF NOT EXISTS space_invitation_space_idx ON space_invitation(space_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS space_invitation_pending_idx ON space_invitation(space_id, email) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		seq BIGSERIAL NOT NULL,
		user_id UUID REFERENCES users(id) ON DELETE SET NULL,
		action VARCHAR(50) NOT NULL,
		resource_type VARCHAR(50) NOT NULL,
		resource_id TEXT,
		space_id UUID REFERENCES space(id) ON DELETE SET NULL,
		details JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_log_user_idx ON audit_log(user_id)`,
	`CREATE INDEX IF NOT EXISTS audit_log_space_idx ON audit_log(space_id)`,
	`CREATE INDEX IF NOT EXISTS audit_log_action_idx ON audit_log(action)`,
	`CREATE INDEX IF NOT EXISTS audit_log_created_idx ON audit_log(created_at, seq)`,

	`CREATE TABLE IF NOT EXISTS tag (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '#6366f1',
		space_id UUID NOT NULL REFERENCES space(id) ON DELETE CASCADE,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE(name, space_id)
	)`,
	`CREATE INDEX IF NOT EXISTS tag_space_idx ON tag(space_id)`,

	`CREATE TABLE IF NOT EXISTS memory_tag (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		memory_id TEXT NOT NULL,
		tag_id UUID NOT NULL REFERENCES tag(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE(memory_id, tag_id)
	)`,
	`CREATE INDEX IF NOT EXISTS memory_tag_memory_idx ON memory_tag(memory_id)`,

	`CREATE TABLE IF NOT EXISTS memory_bookmark (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		memory_id TEXT NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE(memory_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS memory_annotation (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		memory_id TEXT NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS memory_annotation_memory_idx ON memory_annotation(memory_id, user_id)`,

	`CREATE TABLE IF NOT EXISTS kanban_board (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		space_id UUID NOT NULL REFERENCES space(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS kanban_board_space_idx ON kanban_board(space_id)`,

	`CREATE TABLE IF NOT EXISTS kanban_column (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		board_id UUID NOT NULL REFERENCES kanban_board(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		color TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS kanban_column_board_idx ON kanban_column(board_id)`,

	`CREATE TABLE IF NOT EXISTS kanban_card (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		column_id UUID NOT NULL REFERENCES kanban_column(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		position INTEGER NOT NULL,
		assignee_id UUID REFERENCES users(id) ON DELETE SET NULL,
		due_date TIMESTAMP WITH TIME ZONE,
		created_by UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS kanban_card_column_idx ON kanban_card(column_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
