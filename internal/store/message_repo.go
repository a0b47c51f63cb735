package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"kindred/internal/domain"
)

// MessageRepo reads and writes the messages table.
type MessageRepo struct {
	db *bun.DB
}

func NewMessageRepo(db *bun.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Insert(ctx context.Context, m domain.Message) error {
	row := messageToRow(m)
	_, err := r.db.NewInsert().Model(&row).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "messageRepo.Insert.Exec")
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (domain.Message, bool, error) {
	row := new(messageRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, errors.Wrap(err, "messageRepo.Get.Scan")
	}
	return row.toDomain(), true, nil
}

func (r *MessageRepo) ListByMatch(ctx context.Context, matchID domain.MatchID) ([]domain.Message, error) {
	var rows []messageRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("match_id = ?", string(matchID)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListByMatch.Scan")
	}
	out := make([]domain.Message, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// MarkRead sets read_at once. A row that is already read keeps its original
// timestamp: the guard makes the write monotonic.
func (r *MessageRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*messageRow)(nil)).
		Set("read_at = ?", at).
		Where("id = ? AND read_at IS NULL", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "messageRepo.MarkRead.Exec")
	}
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*messageRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "messageRepo.Delete.Exec")
	}
	return nil
}

func (r *MessageRepo) CountByMatch(ctx context.Context, matchID domain.MatchID) (int, error) {
	n, err := r.db.NewSelect().
		Model((*messageRow)(nil)).
		Where("match_id = ?", string(matchID)).
		Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "messageRepo.CountByMatch.Count")
	}
	return n, nil
}

// Compile-time assertion that MessageRepo implements domain.MessageStore.
var _ domain.MessageStore = (*MessageRepo)(nil)
