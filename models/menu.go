package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Menu is a menu record as returned by the remote menu service.
type Menu struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UnmarshalJSON accepts both "id" and the backend's "menu_id" key.
func (m *Menu) UnmarshalJSON(data []byte) error {
	type plain Menu
	var aux struct {
		plain
		MenuID string `json:"menu_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Menu(aux.plain)
	if m.ID == "" {
		m.ID = aux.MenuID
	}
	return nil
}

// Input returns the editable fields of m.
func (m Menu) Input() MenuInput {
	return MenuInput{Name: m.Name, Description: m.Description, IsActive: m.IsActive}
}

// MenuInput is the payload for creating or updating a menu.
type MenuInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// NewMenuInput returns the defaults used by the create form.
func NewMenuInput() MenuInput {
	return MenuInput{IsActive: true}
}

// Normalize trims surrounding whitespace from the text fields.
func (in MenuInput) Normalize() MenuInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Validate checks the normalized input. The returned error, if any, is a
// ValidationError keyed by JSON field name.
func (in MenuInput) Validate() error {
	if err := validate.Struct(in.Normalize()); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate: %w", err)
		}
		fields := make(ValidationError, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		return fields
	}
	return nil
}

// ValidationError maps field names to a human readable message.
type ValidationError map[string]string

func (v ValidationError) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "invalid menu: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch {
	case fe.Field() == "name" && fe.Tag() == "required":
		return "Menu name is required"
	case fe.Tag() == "required":
		return fe.Field() + " is required"
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
