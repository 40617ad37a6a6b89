// internal/repository/users/repository.go
package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "shop-assistant/internal/common/errors"
	"shop-assistant/internal/common/logger"
)

// updatableFields whitelists the profile columns users may change through
// conversation. The field name is interpolated into SQL, so membership in
// this map is the injection guard.
var updatableFields = map[string]string{
	"name":    "name",
	"email":   "email",
	"phone":   "phone",
	"address": "address",
}

// Repository updates user profile fields.
type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "users-repository"}),
	}
}

// UpdateField sets one whitelisted profile field for a user.
func (r *Repository) UpdateField(ctx context.Context, userID int64, field, value string) error {
	column, ok := updatableFields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return apperrors.NewInvalidProfileFieldError(field)
	}

	query := fmt.Sprintf("UPDATE users SET %s = $1, updated_at = NOW() WHERE id = $2", column)
	res, err := r.db.ExecContext(ctx, query, value, userID)
	if err != nil {
		return apperrors.NewProfileUpdateFailedError(fmt.Errorf("update user %d: %w", userID, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewProfileUpdateFailedError(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 0 {
		return apperrors.NewUserNotFoundError(userID)
	}

	r.logger.Info("Profile field updated", map[string]interface{}{
		"userId": userID,
		"field":  column,
	})
	return nil
}

// UpdatableFields returns the field names users may change, for prompts.
func UpdatableFields() []string {
	return []string{"name", "email", "phone", "address"}
}
