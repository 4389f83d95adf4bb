package repository

import (
	"context"

	"telereply/internal/entities"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	db *pgxpool.Pool
}

func NewAdminRepository(db *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Exists(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM admins").Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AdminRepository) Create(ctx context.Context, admin *entities.Admin) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO admins (username, password_hash, must_change_password) VALUES ($1, $2, $3)",
		admin.Username, admin.PasswordHash, admin.MustChangePassword)
	return err
}

func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (*entities.Admin, error) {
	var admin entities.Admin
	err := r.db.QueryRow(ctx,
		"SELECT username, password_hash, must_change_password FROM admins WHERE username = $1",
		username).Scan(&admin.Username, &admin.PasswordHash, &admin.MustChangePassword)
	if err == pgx.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *AdminRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE admins SET password_hash = $2, must_change_password = FALSE WHERE username = $1",
		username, passwordHash)
	return err
}
