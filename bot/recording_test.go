package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"menu-telegram/services"
	"menu-telegram/workflow"
)

type deleteOnly struct {
	workflow.MenuService
	err error
}

func (d deleteOnly) Delete(context.Context, string) error { return d.err }

func TestRecordingDeleteKeepsName(t *testing.T) {
	names := map[string]string{"m1": "Lunch"}
	tests := []struct {
		name     string
		id       string
		err      error
		want     int
		wantName string
		wantLine string
	}{
		{"cached", "m1", nil, 1, "Lunch", `deleted "Lunch"`},
		{"unknown", "m9", nil, 1, "", "deleted menu m9"},
		{"failed", "m1", errors.New("API 500"), 0, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activity := &recordingActivity{}
			r := recordingMenus{
				MenuService: deleteOnly{err: tt.err},
				activity:    activity,
				businessID:  testBusiness,
				userID:      testChat,
				names:       func(id string) string { return names[id] },
				log:         discardLogger(),
			}
			if err := r.Delete(context.Background(), tt.id); !errors.Is(err, tt.err) {
				t.Fatalf("Delete = %v, want %v", err, tt.err)
			}

			got, _ := activity.Recent(context.Background(), testBusiness, 10)
			if len(got) != tt.want {
				t.Fatalf("recorded %d, want %d", len(got), tt.want)
			}
			if tt.want == 0 {
				return
			}
			a := got[0]
			if a.Action != services.ActionDeleted || a.MenuID != tt.id || a.MenuName != tt.wantName {
				t.Errorf("activity = %+v", a)
			}
			if line := a.String(); !strings.Contains(line, tt.wantLine) {
				t.Errorf("String() = %q, want %q", line, tt.wantLine)
			}
		})
	}
}
