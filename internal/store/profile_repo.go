package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"kindred/internal/domain"
)

// ProfileRepo reads and writes the shared profiles table.
type ProfileRepo struct {
	db *bun.DB
}

func NewProfileRepo(db *bun.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

func (r *ProfileRepo) Get(ctx context.Context, id domain.UserID) (domain.Profile, bool, error) {
	row := new(profileRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", string(id)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, errors.Wrap(err, "profileRepo.Get.Scan")
	}
	return row.toDomain(), true, nil
}

// UpsertPublicKey writes the published encryption key for id, creating the
// profile row if the backend has not materialised it yet. The write is
// idempotent and always overwrites: the locally derived key is authoritative.
func (r *ProfileRepo) UpsertPublicKey(ctx context.Context, id domain.UserID, pubB64 string) error {
	row := &profileRow{ID: string(id), EncryptionPublicKey: pubB64}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("encryption_public_key = EXCLUDED.encryption_public_key").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "profileRepo.UpsertPublicKey.Exec")
	}
	return nil
}

// Compile-time assertion that ProfileRepo implements domain.ProfileStore.
var _ domain.ProfileStore = (*ProfileRepo)(nil)
