package repository

import (
	"context"

	"telereply/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings returns the tenant's settings, falling back to defaults when
// the tenant never saved any.
func (r *SettingsRepository) GetSettings(ctx context.Context, ownerID string) (entities.Settings, error) {
	var s entities.Settings
	err := r.db.QueryRow(ctx,
		"SELECT owner_id, active, auto_reply_text, wait_time FROM settings WHERE owner_id = $1",
		ownerID).Scan(&s.OwnerID, &s.Active, &s.AutoReplyText, &s.WaitTime)
	if err == pgx.ErrNoRows {
		return entities.DefaultSettings(ownerID), nil
	}
	if err != nil {
		return entities.Settings{}, err
	}
	return s, nil
}

func (r *SettingsRepository) UpdateSettings(ctx context.Context, settings entities.Settings) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO settings (owner_id, active, auto_reply_text, wait_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id) DO UPDATE SET
			active = EXCLUDED.active,
			auto_reply_text = EXCLUDED.auto_reply_text,
			wait_time = EXCLUDED.wait_time`,
		settings.OwnerID, settings.Active, settings.AutoReplyText, settings.WaitTime)
	return err
}
