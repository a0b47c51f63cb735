package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"kindred/internal/realtime"
)

// notifyDDL wires a Postgres trigger that publishes each inserted message
// row as JSON on the change-feed channel. The channel name is shared with
// internal/realtime.
var notifyDDL = []string{
	`CREATE OR REPLACE FUNCTION kindred_notify_message_insert() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('` + realtime.MessagesChannel + `', row_to_json(NEW)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS kindred_message_insert ON messages`,
	`CREATE TRIGGER kindred_message_insert
AFTER INSERT ON messages
FOR EACH ROW EXECUTE FUNCTION kindred_notify_message_insert()`,
}

// EnsureSchema creates the core tables and the insert-notification trigger.
// Safe to run on every startup.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*profileRow)(nil),
		(*matchRow)(nil),
		(*messageRow)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, "store.EnsureSchema.CreateTable")
		}
	}
	for _, ddl := range notifyDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return errors.Wrap(err, "store.EnsureSchema.Trigger")
		}
	}
	return nil
}
