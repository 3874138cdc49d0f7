package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"menu-telegram/db"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Activity is one recorded menu change.
type Activity struct {
	BusinessID string
	TgUserID   int64
	Action     string
	MenuID     string
	MenuName   string
	Meta       map[string]any
	CreatedAt  time.Time
}

// String formats a for the /history command.
func (a Activity) String() string {
	ts := a.CreatedAt.Format("2006-01-02 15:04")
	if a.MenuName == "" {
		return fmt.Sprintf("%s  %s menu %s", ts, a.Action, a.MenuID)
	}
	return fmt.Sprintf(`%s  %s "%s"`, ts, a.Action, a.MenuName)
}

// ActivityLog persists menu changes in menu_activity.
type ActivityLog struct{}

// Record stores a.
func (ActivityLog) Record(ctx context.Context, a Activity) error {
	metaJSON := "{}"
	if len(a.Meta) > 0 {
		b, err := json.Marshal(a.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = string(b)
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO menu_activity (business_id, tg_user_id, action, menu_id, menu_name, meta)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		a.BusinessID, a.TgUserID, a.Action, a.MenuID, a.MenuName, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// Recent returns the latest changes of a business, newest first.
func (ActivityLog) Recent(ctx context.Context, businessID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT business_id, tg_user_id, action, menu_id, menu_name, meta, created_at
		FROM menu_activity
		WHERE business_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		businessID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var meta []byte
		if err := rows.Scan(&a.BusinessID, &a.TgUserID, &a.Action, &a.MenuID, &a.MenuName, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &a.Meta)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
