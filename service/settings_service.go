package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cooplend/events"
	"cooplend/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const maxSettingValue = 999999

// MaxReferralPctTotal caps the sum of the three referral levels, in percent of the fee pool
var MaxReferralPctTotal = decimal.NewFromInt(9)

// DefaultSettings are used for keys missing from the settings table
var DefaultSettings = map[string]string{
	models.SettingBaseInterestRate:  "12",
	models.SettingLenderSharePct:    "70",
	models.SettingDepositFeePct:     "2",
	models.SettingMaxLoanRatio:      "50",
	models.SettingCapitalLockDays:   "30",
	models.SettingMinAccountAgeDays: "6",
	models.SettingReferralL1Pct:     "5",
	models.SettingReferralL2Pct:     "3",
	models.SettingReferralL3Pct:     "1",
	models.SettingSystemFrozen:      "false",
	models.SettingDepositQRCodeURL:  "",
}

// percentKeys may not exceed 100
var percentKeys = map[string]bool{
	models.SettingLenderSharePct: true,
	models.SettingDepositFeePct:  true,
	models.SettingMaxLoanRatio:   true,
}

var referralKeys = []string{
	models.SettingReferralL1Pct,
	models.SettingReferralL2Pct,
	models.SettingReferralL3Pct,
}

// settingsService implements the SettingsService interface
type settingsService struct {
	uowFactory UnitOfWorkFactory
}

// NewSettingsService creates a new settings service
func NewSettingsService(uowFactory UnitOfWorkFactory) SettingsService {
	return &settingsService{uowFactory: uowFactory}
}

// LoadSnapshot reads every setting once and returns the typed view used by a transition
func LoadSnapshot(ctx context.Context, repo SettingsRepository) (*models.SettingsSnapshot, error) {
	stored, err := repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	values := make(map[string]string, len(DefaultSettings))
	for key, value := range DefaultSettings {
		values[key] = value
	}
	for _, setting := range stored {
		values[setting.Key] = setting.Value
	}

	return buildSnapshot(values), nil
}

func buildSnapshot(values map[string]string) *models.SettingsSnapshot {
	snapshot := &models.SettingsSnapshot{
		BaseInterestRate:  decimalSetting(values, models.SettingBaseInterestRate),
		LenderSharePct:    decimalSetting(values, models.SettingLenderSharePct),
		DepositFeePct:     decimalSetting(values, models.SettingDepositFeePct),
		MaxLoanRatio:      decimalSetting(values, models.SettingMaxLoanRatio),
		CapitalLockDays:   intSetting(values, models.SettingCapitalLockDays),
		MinAccountAgeDays: intSetting(values, models.SettingMinAccountAgeDays),
		SystemFrozen:      values[models.SettingSystemFrozen] == "true",
		DepositQRCodeURL:  values[models.SettingDepositQRCodeURL],
	}
	for i, key := range referralKeys {
		snapshot.ReferralPct[i] = decimalSetting(values, key)
	}
	return snapshot
}

// decimalSetting parses a stored value, falling back to the default when it is unusable
func decimalSetting(values map[string]string, key string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(values[key]))
	if err != nil || d.IsNegative() {
		log.WithFields(log.Fields{
			"key":   key,
			"value": values[key],
		}).Warn("Ignoring invalid stored setting")
		return decimal.RequireFromString(DefaultSettings[key])
	}
	return d
}

func intSetting(values map[string]string, key string) int {
	return int(decimalSetting(values, key).IntPart())
}

// Snapshot returns the current settings
func (s *settingsService) Snapshot(ctx context.Context) (*models.SettingsSnapshot, error) {
	var snapshot *models.SettingsSnapshot
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		snapshot, err = LoadSnapshot(ctx, uow.SettingsRepository())
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// IsFrozen reports whether the kill switch is on
func (s *settingsService) IsFrozen(ctx context.Context) (bool, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snapshot.SystemFrozen, nil
}

// GetAll returns the stored settings
func (s *settingsService) GetAll(ctx context.Context) ([]*models.Setting, error) {
	var settings []*models.Setting
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		settings, err = uow.SettingsRepository().GetAll(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// UpdateSetting validates and stores one setting
func (s *settingsService) UpdateSetting(ctx context.Context, caller Capability, key, value string) (*models.Setting, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	value = strings.TrimSpace(value)
	if err := ValidateSetting(key, value); err != nil {
		return nil, err
	}

	var updated *models.Setting
	err := runTransition(ctx, s.uowFactory, "update_setting", func(uow UnitOfWork) error {
		repo := uow.SettingsRepository()

		previous, err := repo.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to get setting %s: %w", key, err)
		}
		oldValue := DefaultSettings[key]
		if previous != nil {
			oldValue = previous.Value
		}

		if isReferralKey(key) {
			snapshot, err := LoadSnapshot(ctx, repo)
			if err != nil {
				return err
			}
			total := decimal.RequireFromString(value)
			for i, other := range referralKeys {
				if other != key {
					total = total.Add(snapshot.ReferralPct[i])
				}
			}
			if total.GreaterThan(MaxReferralPctTotal) {
				return NewValidationError("Referral percentages may not exceed %s%% in total", MaxReferralPctTotal)
			}
		}

		if err := repo.Upsert(ctx, key, value, caller.UserID); err != nil {
			return fmt.Errorf("failed to update setting %s: %w", key, err)
		}

		updated, err = repo.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to reload setting %s: %w", key, err)
		}

		uow.EventBus().Publish(events.SettingChangedEvent{
			Key:       key,
			OldValue:  oldValue,
			NewValue:  value,
			UpdatedBy: caller.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"key":        key,
		"value":      value,
		"updated_by": caller.UserID,
	}).Info("Setting updated")

	return updated, nil
}

// ValidateSetting checks a key is known and its value is in range
func ValidateSetting(key, value string) error {
	if _, ok := DefaultSettings[key]; !ok {
		return NewValidationError("Invalid setting key: %s", key)
	}

	switch key {
	case models.SettingSystemFrozen:
		if value != "true" && value != "false" {
			return NewValidationError("system_frozen must be 'true' or 'false'")
		}
		return nil
	case models.SettingDepositQRCodeURL:
		return nil
	}

	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(maxSettingValue)) {
		return NewValidationError("Invalid value for %s", key)
	}
	if percentKeys[key] && d.GreaterThan(hundred) {
		return NewValidationError("%s must be between 0 and 100", key)
	}
	if key == models.SettingCapitalLockDays || key == models.SettingMinAccountAgeDays {
		if _, err := strconv.Atoi(value); err != nil {
			return NewValidationError("%s must be a whole number of days", key)
		}
	}
	return nil
}

func isReferralKey(key string) bool {
	for _, k := range referralKeys {
		if k == key {
			return true
		}
	}
	return false
}
