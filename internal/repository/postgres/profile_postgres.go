package postgres

import (
	"context"
	"database/sql"
	"strings"

	"vendocs/internal/model"
	"vendocs/internal/repository"
)

// ProfilePostgres is a PostgreSQL implementation of repository.ProfileRepository.
type ProfilePostgres struct {
	db *sql.DB
}

func NewProfilePostgres(db *sql.DB) *ProfilePostgres {
	return &ProfilePostgres{db: db}
}

var _ repository.ProfileRepository = (*ProfilePostgres)(nil)

// FindByUID fetches the access profile for one identity.
func (r *ProfilePostgres) FindByUID(ctx context.Context, uid string) (*model.UserProfile, error) {
	const q = `
		SELECT uid, email, active, level, created_at
		FROM users
		WHERE uid = $1
	`
	var (
		p         model.UserProfile
		email     sql.NullString
		level     sql.NullInt64
		createdAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, uid).Scan(&p.UID, &email, &p.Active, &level, &createdAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	p.Email = strings.TrimSpace(email.String)
	p.Level = int(level.Int64)
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return &p, nil
}
