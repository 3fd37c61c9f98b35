// Package users declares the repository contract for accounts and their
// enrolled object vectors, with Postgres and SQLite implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/scanpass/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound for a
// missing row and Create returns common.ErrorAlreadyExists for a taken
// username.
type Repository interface {
	// Create inserts user and fills in its ID and CreatedAt.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// SetObjectVector overwrites the enrolled vector of userID.
	SetObjectVector(ctx context.Context, userID string, vector []float32) error

	// ClearObjectVector removes the enrolled vector of userID. The store
	// refuses to leave a user with no credential and reports
	// common.ErrValidation in that case.
	ClearObjectVector(ctx context.Context, userID string) error
}
