package bot

import (
	"context"
	"log/slog"
	"time"

	"menu-telegram/models"
	"menu-telegram/services"
	"menu-telegram/workflow"
)

// ActivityStore persists menu changes for /history.
type ActivityStore interface {
	Record(ctx context.Context, a services.Activity) error
	Recent(ctx context.Context, businessID string, limit int) ([]services.Activity, error)
}

// recordingMenus records every successful write of the wrapped service.
// Recording failures are logged and never fail the write. names resolves the
// name of a cached menu for deletions, "" when unknown.
type recordingMenus struct {
	workflow.MenuService
	activity   ActivityStore
	businessID string
	userID     int64
	names      func(id string) string
	log        *slog.Logger
}

func (r recordingMenus) Create(ctx context.Context, in models.MenuInput) (models.Menu, error) {
	m, err := r.MenuService.Create(ctx, in)
	if err == nil {
		r.record(ctx, services.ActionCreated, m.ID, m.Name)
	}
	return m, err
}

func (r recordingMenus) Update(ctx context.Context, id string, in models.MenuInput) (models.Menu, error) {
	m, err := r.MenuService.Update(ctx, id, in)
	if err == nil {
		r.record(ctx, services.ActionUpdated, id, m.Name)
	}
	return m, err
}

func (r recordingMenus) Delete(ctx context.Context, id string) error {
	var name string
	if r.names != nil {
		name = r.names(id)
	}
	err := r.MenuService.Delete(ctx, id)
	if err == nil {
		r.record(ctx, services.ActionDeleted, id, name)
	}
	return err
}

func (r recordingMenus) record(ctx context.Context, action, menuID, name string) {
	a := services.Activity{
		BusinessID: r.businessID,
		TgUserID:   r.userID,
		Action:     action,
		MenuID:     menuID,
		MenuName:   name,
		CreatedAt:  time.Now(),
	}
	if err := r.activity.Record(ctx, a); err != nil {
		r.log.Warn("record menu activity", "action", action, "menu_id", menuID, "err", err)
	}
}
