package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"kindred/internal/domain"
)

// MatchRepo reads the matches table.
type MatchRepo struct {
	db *bun.DB
}

func NewMatchRepo(db *bun.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

func (r *MatchRepo) Get(ctx context.Context, id domain.MatchID) (domain.Match, bool, error) {
	row := new(matchRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", string(id)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Match{}, false, nil
	}
	if err != nil {
		return domain.Match{}, false, errors.Wrap(err, "matchRepo.Get.Scan")
	}
	return row.toDomain(), true, nil
}

// Compile-time assertion that MatchRepo implements domain.MatchStore.
var _ domain.MatchStore = (*MatchRepo)(nil)
