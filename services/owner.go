package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"menu-telegram/db"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword is returned when no owner matches the password.
var ErrInvalidPassword = errors.New("invalid password")

// Owner is a business owner allowed to manage the menus of BusinessID.
type Owner struct {
	ID         int64
	BusinessID string
	Name       string
}

// HashOwnerPassword returns a bcrypt hash of the plain password for storing in DB.
func HashOwnerPassword(plain string) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// AddOwner stores an owner for businessID and returns its id.
func AddOwner(ctx context.Context, businessID, name, passwordHash string) (int64, error) {
	if businessID == "" {
		return 0, fmt.Errorf("business id cannot be empty")
	}
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO owners (business_id, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id`,
		businessID, name, passwordHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert owner: %w", err)
	}
	return id, nil
}

// AuthenticateOwner checks plainPassword against every active owner; on
// match it records tgUserID as logged in to that owner.
func AuthenticateOwner(ctx context.Context, tgUserID int64, plainPassword string) (Owner, bool, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, business_id, name, password_hash FROM owners WHERE is_active`)
	if err != nil {
		return Owner{}, false, fmt.Errorf("query owners: %w", err)
	}
	defer rows.Close()

	var matched *Owner
	for rows.Next() {
		var o Owner
		var hash string
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.Name, &hash); err != nil {
			return Owner{}, false, err
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(plainPassword)) == nil {
			matched = &o
			break
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Owner{}, false, err
	}
	if matched == nil {
		return Owner{}, false, nil
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO owner_sessions (tg_user_id, owner_id, logged_in_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tg_user_id) DO UPDATE SET owner_id = $2, logged_in_at = now()`,
		tgUserID, matched.ID,
	)
	if err != nil {
		return Owner{}, false, fmt.Errorf("save session: %w", err)
	}
	return *matched, true, nil
}

// SessionOwner returns the owner tgUserID is logged in as, if any.
func SessionOwner(ctx context.Context, tgUserID int64) (Owner, bool, error) {
	var o Owner
	err := db.Pool.QueryRow(ctx, `
		SELECT o.id, o.business_id, o.name
		FROM owner_sessions s JOIN owners o ON o.id = s.owner_id
		WHERE s.tg_user_id = $1 AND o.is_active`,
		tgUserID,
	).Scan(&o.ID, &o.BusinessID, &o.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Owner{}, false, nil
		}
		return Owner{}, false, fmt.Errorf("read session: %w", err)
	}
	return o, true, nil
}

// EndOwnerSession logs tgUserID out.
func EndOwnerSession(ctx context.Context, tgUserID int64) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM owner_sessions WHERE tg_user_id = $1`, tgUserID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// OwnerAuth logs owners in against the owners table with login throttling.
type OwnerAuth struct{}

// Login authenticates tgUserID. It returns *ThrottledError during a
// cooldown and ErrInvalidPassword when nothing matches.
func (OwnerAuth) Login(ctx context.Context, tgUserID int64, password string) (Owner, error) {
	wait, err := LoginThrottleWait(ctx, tgUserID, ThrottleRoleOwner)
	if err != nil {
		return Owner{}, err
	}
	if wait > 0 {
		return Owner{}, &ThrottledError{Wait: wait}
	}

	o, ok, err := AuthenticateOwner(ctx, tgUserID, password)
	if err != nil {
		return Owner{}, err
	}
	if !ok {
		if err := RecordLoginFailed(ctx, tgUserID, ThrottleRoleOwner); err != nil {
			return Owner{}, err
		}
		return Owner{}, ErrInvalidPassword
	}
	if err := RecordLoginSuccess(ctx, tgUserID, ThrottleRoleOwner); err != nil {
		return Owner{}, err
	}
	return o, nil
}

// Restore returns the owner of a session persisted by an earlier Login.
func (OwnerAuth) Restore(ctx context.Context, tgUserID int64) (Owner, bool, error) {
	return SessionOwner(ctx, tgUserID)
}

// Logout ends the persisted session.
func (OwnerAuth) Logout(ctx context.Context, tgUserID int64) error {
	return EndOwnerSession(ctx, tgUserID)
}

// StaticAuth accepts a single shared password for one business. It is used
// when no database is configured.
type StaticAuth struct {
	Password   string
	BusinessID string
}

func (a StaticAuth) Login(_ context.Context, _ int64, password string) (Owner, error) {
	if a.Password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(a.Password)) != 1 {
		return Owner{}, ErrInvalidPassword
	}
	return Owner{BusinessID: a.BusinessID, Name: "owner"}, nil
}

func (StaticAuth) Restore(context.Context, int64) (Owner, bool, error) {
	return Owner{}, false, nil
}

func (StaticAuth) Logout(context.Context, int64) error { return nil }
