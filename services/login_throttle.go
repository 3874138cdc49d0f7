package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"menu-telegram/db"

	"github.com/jackc/pgx/v5"
)

const (
	ThrottleRoleOwner          = "owner"
	ThrottleCooldownCapSeconds = 30
)

// ThrottledError is returned when a login is attempted during a cooldown.
type ThrottledError struct {
	Wait time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.Wait.Round(time.Second))
}

// LoginThrottleWait returns how long the user must wait before trying again
// (0 if no cooldown).
func LoginThrottleWait(ctx context.Context, tgUserID int64, role string) (time.Duration, error) {
	var cooldownUntil *time.Time
	err := db.Pool.QueryRow(ctx, `
		SELECT cooldown_until FROM login_throttle WHERE tg_user_id = $1 AND role = $2`,
		tgUserID, role,
	).Scan(&cooldownUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read throttle: %w", err)
	}
	if cooldownUntil == nil {
		return 0, nil
	}
	return remaining(time.Now(), *cooldownUntil), nil
}

// remaining rounds the time left up to whole seconds.
func remaining(now, until time.Time) time.Duration {
	if !now.Before(until) {
		return 0
	}
	return until.Sub(now).Truncate(time.Second) + time.Second
}

// RecordLoginFailed increments fail_count and sets
// cooldown_until = now() + CooldownSecondsForFailCount(fail_count) seconds.
func RecordLoginFailed(ctx context.Context, tgUserID int64, role string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var failCount int
	err = tx.QueryRow(ctx, `
		INSERT INTO login_throttle (tg_user_id, role, fail_count, last_failed_at, updated_at)
		VALUES ($1, $2, 1, now(), now())
		ON CONFLICT (tg_user_id, role) DO UPDATE SET
			fail_count = login_throttle.fail_count + 1,
			last_failed_at = now(),
			updated_at = now()
		RETURNING fail_count`,
		tgUserID, role,
	).Scan(&failCount)
	if err != nil {
		return fmt.Errorf("record failed login: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE login_throttle SET cooldown_until = now() + make_interval(secs => $3)
		WHERE tg_user_id = $1 AND role = $2`,
		tgUserID, role, float64(CooldownSecondsForFailCount(failCount)),
	)
	if err != nil {
		return fmt.Errorf("set login cooldown: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// RecordLoginSuccess resets fail_count and cooldown_until for the user/role.
func RecordLoginSuccess(ctx context.Context, tgUserID int64, role string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO login_throttle (tg_user_id, role, fail_count, last_failed_at, cooldown_until, updated_at)
		VALUES ($1, $2, 0, NULL, NULL, now())
		ON CONFLICT (tg_user_id, role) DO UPDATE SET
			fail_count = 0,
			last_failed_at = NULL,
			cooldown_until = NULL,
			updated_at = now()`,
		tgUserID, role,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// CooldownSecondsForFailCount returns min(30, 2^failCount).
func CooldownSecondsForFailCount(failCount int) int {
	s := math.Pow(2, float64(failCount))
	if s > ThrottleCooldownCapSeconds {
		return ThrottleCooldownCapSeconds
	}
	return int(s)
}
