package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"androidmirror/models"
)

// settingField binds one persisted key to a MirrorSettings field
type settingField struct {
	key string
	get func(models.MirrorSettings) string
	set func(*models.MirrorSettings, string) error
}

func intField(key string, ptr func(*models.MirrorSettings) *int) settingField {
	return settingField{
		key: key,
		get: func(s models.MirrorSettings) string { return strconv.Itoa(*ptr(&s)) },
		set: func(s *models.MirrorSettings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*ptr(s) = n
			return nil
		},
	}
}

func boolField(key string, ptr func(*models.MirrorSettings) *bool) settingField {
	return settingField{
		key: key,
		get: func(s models.MirrorSettings) string { return strconv.FormatBool(*ptr(&s)) },
		set: func(s *models.MirrorSettings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}
			*ptr(s) = b
			return nil
		},
	}
}

var settingFields = []settingField{
	intField("resolutionX", func(s *models.MirrorSettings) *int { return &s.ResolutionX }),
	intField("resolutionY", func(s *models.MirrorSettings) *int { return &s.ResolutionY }),
	intField("fps", func(s *models.MirrorSettings) *int { return &s.MaxFPS }),
	{
		key: "codec",
		get: func(s models.MirrorSettings) string { return s.Codec },
		set: func(s *models.MirrorSettings, v string) error { s.Codec = v; return nil },
	},
	boolField("audioEnabled", func(s *models.MirrorSettings) *bool { return &s.AudioEnabled }),
	boolField("forwardAllClicks", func(s *models.MirrorSettings) *bool { return &s.ForwardAllClicks }),
	boolField("gamepadPassthrough", func(s *models.MirrorSettings) *bool { return &s.GamepadPassthrough }),
	boolField("alwaysOnTop", func(s *models.MirrorSettings) *bool { return &s.AlwaysOnTop }),
	boolField("fullscreen", func(s *models.MirrorSettings) *bool { return &s.Fullscreen }),
	boolField("moveAppToMainDisplay", func(s *models.MirrorSettings) *bool { return &s.MoveAppToMainDisplay }),
}

// SettingsStore persists mirroring preferences in the settings table.
// Keys that were never saved fall back to the defaults.
type SettingsStore struct {
	db       *sql.DB
	defaults models.MirrorSettings
}

func NewSettingsStore(db *sql.DB, defaults models.MirrorSettings) *SettingsStore {
	return &SettingsStore{db: db, defaults: defaults}
}

// Load returns the stored settings merged over the defaults
func (s *SettingsStore) Load(ctx context.Context) (models.MirrorSettings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return models.MirrorSettings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.MirrorSettings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		stored[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.MirrorSettings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := s.defaults
	for _, f := range settingFields {
		v, ok := stored[f.key]
		if !ok {
			continue
		}
		if err := f.set(&settings, v); err != nil {
			return models.MirrorSettings{}, fmt.Errorf("corrupt setting %s=%q: %w", f.key, v, err)
		}
	}
	return settings, nil
}

// Save validates and writes every field in one transaction
func (s *SettingsStore) Save(ctx context.Context, settings models.MirrorSettings) error {
	if err := ValidateMirrorSettings(settings); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare settings upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, f := range settingFields {
		if _, err := stmt.ExecContext(ctx, f.key, f.get(settings), now); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", f.key, err)
		}
	}
	return tx.Commit()
}
