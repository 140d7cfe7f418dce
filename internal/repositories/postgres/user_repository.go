package postgres

import (
	"context"
	"errors"

	domain "github.com/craftmarket/api/internal/domain"
	"github.com/craftmarket/api/internal/repositories"
)

// UserRepository implements repositories.UserRepository on Postgres.
type UserRepository struct {
	provider *Provider
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Postgres-backed user repository.
func NewUserRepository(provider *Provider) *UserRepository {
	return &UserRepository{provider: provider}
}

// FindByID resolves a user identity.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.provider == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	q := r.provider.querier(ctx)

	row := q.QueryRow(ctx, `
		SELECT id, role, display_name, email, created_at
		FROM users WHERE id = $1`, userID)

	var user domain.User
	err := row.Scan(&user.ID, &user.Role, &user.DisplayName, &user.Email, &user.CreatedAt)
	if err != nil {
		return domain.User{}, wrapError("users.find_by_id", err)
	}
	return user, nil
}
