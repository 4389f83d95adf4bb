package repository

import (
	"context"
	"strings"

	"telereply/internal/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type KeywordRepository struct {
	db *pgxpool.Pool
}

func NewKeywordRepository(db *pgxpool.Pool) *KeywordRepository {
	return &KeywordRepository{db: db}
}

// GetKeywords returns the tenant's keywords in insertion order.
func (r *KeywordRepository) GetKeywords(ctx context.Context, ownerID string) ([]entities.Keyword, error) {
	rows, err := r.db.Query(ctx,
		"SELECT owner_id, keyword, reply FROM keywords WHERE owner_id = $1 ORDER BY id",
		ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Keyword
	for rows.Next() {
		var k entities.Keyword
		if err := rows.Scan(&k.OwnerID, &k.Keyword, &k.Reply); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// AddKeyword upserts a keyword for the tenant. Keywords are stored
// lower-cased; re-adding one replaces its reply.
func (r *KeywordRepository) AddKeyword(ctx context.Context, keyword entities.Keyword) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO keywords (owner_id, keyword, reply)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, keyword) DO UPDATE SET reply = EXCLUDED.reply`,
		keyword.OwnerID, strings.ToLower(keyword.Keyword), keyword.Reply)
	return err
}

func (r *KeywordRepository) DeleteKeyword(ctx context.Context, ownerID, keyword string) error {
	_, err := r.db.Exec(ctx,
		"DELETE FROM keywords WHERE owner_id = $1 AND keyword = $2",
		ownerID, strings.ToLower(keyword))
	return err
}
