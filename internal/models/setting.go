package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SettingType tells how a stored setting value is parsed.
type SettingType string

const (
	SettingTypeString  SettingType = "STRING"
	SettingTypeBoolean SettingType = "BOOLEAN"
	SettingTypeInteger SettingType = "INTEGER"
)

// Site settings editable from the admin console.
const (
	SettingSiteDisplayName  = "site_display_name"
	SettingDefaultSortBy    = "default_sort_by"
	SettingDefaultSortOrder = "default_sort_order"
	SettingUrgentWindowDays = "urgent_window_days"
	SettingMaxAmountFilter  = "max_amount_filter"
	SettingEnableExportsUI  = "enable_exports_ui"
)

// Setting is one row of site_settings.
type Setting struct {
	Key         string      `db:"key" json:"key"`
	Value       string      `db:"value" json:"value"`
	Type        SettingType `db:"type" json:"type"`
	Description *string     `db:"description" json:"description,omitempty"`
	UpdatedBy   *string     `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Normalize trims value and rewrites it in canonical form for t: booleans
// become "true"/"false" and integers lose leading zeros and signs.
func (t SettingType) Normalize(value string) (string, error) {
	value = strings.TrimSpace(value)
	switch t {
	case SettingTypeString:
		return value, nil
	case SettingTypeBoolean:
		switch strings.ToLower(value) {
		case "true", "false":
			return strings.ToLower(value), nil
		}
		return "", fmt.Errorf("expects boolean value")
	case SettingTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("expects integer value")
		}
		return strconv.Itoa(n), nil
	default:
		return "", fmt.Errorf("unsupported setting type %q", string(t))
	}
}
