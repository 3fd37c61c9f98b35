// Package sessions declares the server-side repository contract for auth
// sessions, with Postgres and SQLite implementations.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/server/models"
)

// Repository defines operations for issuing, looking up and revoking sessions.
type Repository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *models.Session) error

	// Find looks up a session by ID. Implementations return
	// common.ErrorNotFound when it is absent.
	Find(ctx context.Context, id string) (*models.Session, error)

	// MarkSecondFactor records that the session passed visual authentication at.
	MarkSecondFactor(ctx context.Context, id string, at time.Time) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes every session that expired at or before now and
	// reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
