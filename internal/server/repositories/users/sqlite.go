package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/dbx"
	"github.com/dmitrijs2005/scanpass/internal/server/models"
	"github.com/dmitrijs2005/scanpass/internal/vectorx"
	"github.com/google/uuid"
)

// SQLiteRepository stores users in SQLite. Timestamps are unix milliseconds.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	vector, err := vectorx.Encode(user.ObjectVector)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	createdAt := r.now().UTC().Truncate(time.Millisecond)

	query :=
		`INSERT INTO users (id, username, password_hash, object_vector, created_at)
		 VALUES (?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		id, user.UserName, nullString(user.PasswordHash), nullBytes(vector), createdAt.UnixMilli())
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.ID = id
	user.CreatedAt = createdAt
	return user, nil
}

func (r *SQLiteRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, object_vector, created_at FROM users
		 WHERE username = ?`
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, userName))
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, object_vector, created_at FROM users
		 WHERE id = ?`
	return scanSQLiteUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) SetObjectVector(ctx context.Context, userID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty object vector", common.ErrValidation)
	}

	encoded, err := vectorx.Encode(vector)
	if err != nil {
		return err
	}

	return execOne(ctx, r.db, `UPDATE users SET object_vector = ? WHERE id = ?`, encoded, userID)
}

func (r *SQLiteRepository) ClearObjectVector(ctx context.Context, userID string) error {
	return execOne(ctx, r.db, `UPDATE users SET object_vector = NULL WHERE id = ?`, userID)
}

func scanSQLiteUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		password  sql.NullString
		vector    []byte
		createdAt int64
	)

	err := row.Scan(&user.ID, &user.UserName, &password, &vector, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()

	return finishUser(&user, password, vector)
}
