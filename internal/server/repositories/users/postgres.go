package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/scanpass/internal/common"
	"github.com/dmitrijs2005/scanpass/internal/dbx"
	"github.com/dmitrijs2005/scanpass/internal/server/models"
	"github.com/dmitrijs2005/scanpass/internal/vectorx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	vector, err := vectorx.Encode(user.ObjectVector)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO users (username, password_hash, object_vector)
         VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		user.UserName, nullString(user.PasswordHash), nullBytes(vector)).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, object_vector, created_at FROM users
		 WHERE username = $1
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, userName))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, password_hash, object_vector, created_at FROM users
		 WHERE id = $1
		 `
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) SetObjectVector(ctx context.Context, userID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty object vector", common.ErrValidation)
	}

	encoded, err := vectorx.Encode(vector)
	if err != nil {
		return err
	}

	query :=
		`UPDATE users SET object_vector = $2
		 WHERE id = $1
		 `
	return execOne(ctx, r.db, query, userID, encoded)
}

func (r *PostgresRepository) ClearObjectVector(ctx context.Context, userID string) error {
	query :=
		`UPDATE users SET object_vector = NULL
		 WHERE id = $1
		 `
	return execOne(ctx, r.db, query, userID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		password sql.NullString
		vector   []byte
	)

	err := row.Scan(&user.ID, &user.UserName, &password, &vector, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return finishUser(&user, password, vector)
}

func finishUser(user *models.User, password sql.NullString, vector []byte) (*models.User, error) {
	user.PasswordHash = password.String

	v, err := vectorx.Decode(vector)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user.ID, err)
	}
	user.ObjectVector = v

	return user, nil
}

func execOne(ctx context.Context, db dbx.DBTX, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if dbx.IsCheckViolation(err) {
			return fmt.Errorf("%w: user would be left without a credential", common.ErrValidation)
		}
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
