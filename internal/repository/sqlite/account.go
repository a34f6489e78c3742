package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/watchme/internal/apperror"
	"github.com/sakif/watchme/internal/model"
	"github.com/sakif/watchme/internal/repository"
)

var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, username, email, first_name, last_name, name, about,
	avatar_url, profile_url, permission, auth_kind, password_hash, provider,
	provider_id, provider_token, last_login_at, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var (
		a         model.Account
		kind      string
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.Name, &a.About,
		&a.AvatarURL, &a.ProfileURL, &a.Permission, &kind, &a.Auth.PasswordHash,
		&a.Auth.Provider, &a.Auth.ProviderID, &a.Auth.Token, &lastLogin,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Auth.Kind = model.AuthKind(kind)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	account.ID = xid.New().String()

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	var lastLogin any
	if account.LastLoginAt != nil {
		lastLogin = account.LastLoginAt.UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.Username, account.Email, account.FirstName, account.LastName,
		account.Name, account.About, account.AvatarURL, account.ProfileURL,
		account.Permission, string(account.Auth.Kind), account.Auth.PasswordHash,
		account.Auth.Provider, account.Auth.ProviderID, account.Auth.Token,
		lastLogin, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("User already exists")
		}
		return fmt.Errorf("sqlite: creating account %q: %w", account.Username, err)
	}

	return nil
}

func (db *DB) getAccountWhere(ctx context.Context, what, where string, args ...any) (*model.Account, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+where, args...)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", what)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", what, err)
	}
	return account, nil
}

func (db *DB) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return db.getAccountWhere(ctx, id, `id = ?`, id)
}

func (db *DB) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return db.getAccountWhere(ctx, username, `username = ?`, username)
}

func (db *DB) GetAccountByProvider(ctx context.Context, provider string, providerID int64) (*model.Account, error) {
	return db.getAccountWhere(ctx, fmt.Sprintf("%s:%d", provider, providerID),
		`auth_kind = 'external' AND provider = ? AND provider_id = ?`, provider, providerID)
}

func (db *DB) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning account row: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating accounts: %w", err)
	}

	return accounts, nil
}

func (db *DB) CredentialsTaken(ctx context.Context, username, email string) (bool, bool, error) {
	var usernameTaken, emailTaken bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM accounts WHERE username = ?),
			EXISTS (SELECT 1 FROM accounts WHERE ? <> '' AND email = ?)`,
		username, email, email,
	).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return false, false, fmt.Errorf("sqlite: checking credentials: %w", err)
	}
	return usernameTaken, emailTaken, nil
}

func (db *DB) RecordLogin(ctx context.Context, id string, at time.Time, providerToken string) error {
	err := db.execOne(ctx, apperror.NotFound("account", id),
		`UPDATE accounts
		 SET last_login_at = ?,
		     provider_token = CASE WHEN ? <> '' THEN ? ELSE provider_token END,
		     updated_at = ?
		 WHERE id = ?`,
		at.UTC(), providerToken, providerToken, time.Now().UTC(), id,
	)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: recording login for %s: %w", id, err)
	}
	return err
}
