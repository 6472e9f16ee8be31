// Package rules owns rule authoring: validation, CRUD over the rule
// store and the snapshot-on-save contract. Every save that changes
// evaluated semantics (create, edit, promote, rollback) records a
// version; snapshotting is the only way version numbers advance.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/models"
	"github.com/flowledger/flowledger/internal/versions"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a rule does not exist.
var ErrNotFound = errors.New("rules: not found")

// ErrNameTaken is returned when a rule name collides with another rule.
var ErrNameTaken = errors.New("rules: name already in use")

// SaveInput carries a full rule definition for create or update.
type SaveInput struct {
	Name           string          `json:"name"`            // Unique display name.
	Priority       int             `json:"priority"`        // Higher evaluates first.
	TriggerType    string          `json:"trigger_type"`    // manual, transaction or schedule.
	TriggerConfig  json.RawMessage `json:"trigger_config"`  // Trigger filter payload.
	Conditions     json.RawMessage `json:"conditions"`      // Ordered condition specs.
	Actions        json.RawMessage `json:"actions"`         // Ordered action specs.
	Enabled        *bool           `json:"enabled"`         // Defaults to true on create.
	LifecycleState string          `json:"lifecycle_state"` // Defaults to draft on create.
	ChangeNote     string          `json:"change_note"`     // Version note for this save.
}

// validate normalizes and checks a save payload.
func (in *SaveInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("rules: name is required")
	}
	switch in.TriggerType {
	case models.TriggerManual, models.TriggerTransaction, models.TriggerSchedule:
	default:
		return fmt.Errorf("rules: unknown trigger type: %s", in.TriggerType)
	}
	switch in.LifecycleState {
	case "", models.LifecycleDraft, models.LifecycleActive:
	default:
		return fmt.Errorf("rules: unknown lifecycle state: %s", in.LifecycleState)
	}
	if len(in.TriggerConfig) > 0 {
		if _, errDecode := engine.DecodeTriggerConfig(datatypes.JSON(in.TriggerConfig)); errDecode != nil {
			return fmt.Errorf("rules: invalid trigger config: %w", errDecode)
		}
	}
	if len(in.Conditions) > 0 {
		if _, errDecode := engine.DecodeConditions(datatypes.JSON(in.Conditions)); errDecode != nil {
			return fmt.Errorf("rules: invalid conditions: %w", errDecode)
		}
	}
	if len(in.Actions) > 0 {
		if _, errDecode := engine.DecodeActions(datatypes.JSON(in.Actions)); errDecode != nil {
			return fmt.Errorf("rules: invalid actions: %w", errDecode)
		}
	}
	return nil
}

func (in *SaveInput) applyTo(rule *models.Rule) {
	rule.Name = in.Name
	rule.Priority = in.Priority
	rule.TriggerType = in.TriggerType
	rule.TriggerConfig = jsonOr(in.TriggerConfig, "{}")
	rule.Conditions = jsonOr(in.Conditions, "[]")
	rule.Actions = jsonOr(in.Actions, "[]")
	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	if in.LifecycleState != "" {
		rule.LifecycleState = in.LifecycleState
	}
}

func jsonOr(raw json.RawMessage, fallback string) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(raw)
}

// Create validates, inserts and snapshots a new rule.
func Create(ctx context.Context, db *gorm.DB, input SaveInput) (*models.Rule, error) {
	if errValidate := input.validate(); errValidate != nil {
		return nil, errValidate
	}

	var count int64
	if errCount := db.WithContext(ctx).Model(&models.Rule{}).
		Where("name = ?", input.Name).
		Count(&count).Error; errCount != nil {
		return nil, fmt.Errorf("rules: check name: %w", errCount)
	}
	if count > 0 {
		return nil, ErrNameTaken
	}

	rule := models.Rule{Enabled: true, LifecycleState: models.LifecycleDraft}
	input.applyTo(&rule)
	if errCreate := db.WithContext(ctx).Create(&rule).Error; errCreate != nil {
		return nil, fmt.Errorf("rules: create: %w", errCreate)
	}

	note := input.ChangeNote
	if note == "" {
		note = "Created"
	}
	if _, errSnap := versions.Snapshot(ctx, db, &rule, note, false); errSnap != nil {
		return nil, errSnap
	}
	return &rule, nil
}

// Update validates, applies and snapshots changes to an existing rule.
func Update(ctx context.Context, db *gorm.DB, id uint64, input SaveInput) (*models.Rule, error) {
	if errValidate := input.validate(); errValidate != nil {
		return nil, errValidate
	}

	rule, errGet := Get(ctx, db, id)
	if errGet != nil {
		return nil, errGet
	}

	if input.Name != rule.Name {
		var count int64
		if errCount := db.WithContext(ctx).Model(&models.Rule{}).
			Where("name = ? AND id <> ?", input.Name, id).
			Count(&count).Error; errCount != nil {
			return nil, fmt.Errorf("rules: check name: %w", errCount)
		}
		if count > 0 {
			return nil, ErrNameTaken
		}
	}

	input.applyTo(rule)
	if errSave := db.WithContext(ctx).Save(rule).Error; errSave != nil {
		return nil, fmt.Errorf("rules: update: %w", errSave)
	}

	note := input.ChangeNote
	if note == "" {
		note = "Saved from Rule Builder"
	}
	if _, errSnap := versions.Snapshot(ctx, db, rule, note, false); errSnap != nil {
		return nil, errSnap
	}
	return rule, nil
}

// Promote enables a rule, moves it to the active lifecycle state and
// snapshots the promotion.
func Promote(ctx context.Context, db *gorm.DB, id uint64, changeNote string) (*models.Rule, error) {
	rule, errGet := Get(ctx, db, id)
	if errGet != nil {
		return nil, errGet
	}

	rule.Enabled = true
	rule.LifecycleState = models.LifecycleActive
	if errSave := db.WithContext(ctx).Save(rule).Error; errSave != nil {
		return nil, fmt.Errorf("rules: promote: %w", errSave)
	}

	note := changeNote
	if note == "" {
		note = "Promoted to active"
	}
	if _, errSnap := versions.Snapshot(ctx, db, rule, note, false); errSnap != nil {
		return nil, errSnap
	}
	return rule, nil
}

// Get fetches one rule.
func Get(ctx context.Context, db *gorm.DB, id uint64) (*models.Rule, error) {
	var rule models.Rule
	errFind := db.WithContext(ctx).First(&rule, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rules: get: %w", errFind)
	}
	return &rule, nil
}

// List returns all rules in batch evaluation order.
func List(ctx context.Context, db *gorm.DB) ([]models.Rule, error) {
	var rows []models.Rule
	if errFind := db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("rules: list: %w", errFind)
	}
	engine.SortRules(rows)
	return rows, nil
}

// Delete removes a rule. Versions and runs are kept: the audit trail
// outlives the rule definition.
func Delete(ctx context.Context, db *gorm.DB, id uint64) error {
	result := db.WithContext(ctx).Delete(&models.Rule{}, id)
	if result.Error != nil {
		return fmt.Errorf("rules: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RollbackToVersion restores a prior version as the rule's live
// definition and records the rollback as a new version.
func RollbackToVersion(ctx context.Context, db *gorm.DB, id uint64, versionNumber int, changeNote string) (*models.Rule, error) {
	rule, errGet := Get(ctx, db, id)
	if errGet != nil {
		return nil, errGet
	}
	target, errTarget := versions.Get(ctx, db, id, versionNumber)
	if errTarget != nil {
		return nil, errTarget
	}
	if errRollback := versions.Rollback(ctx, db, rule, target, changeNote); errRollback != nil {
		return nil, errRollback
	}
	return rule, nil
}
