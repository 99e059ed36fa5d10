package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	referralCodeAttempts = 5
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// memberService implements the MemberService interface
type memberService struct {
	uowFactory UnitOfWorkFactory
}

// NewMemberService creates a new member service
func NewMemberService(uowFactory UnitOfWorkFactory) MemberService {
	return &memberService{uowFactory: uowFactory}
}

// RegisterMember creates a zero-balance profile. When an inviting member's code is
// given, the new member is linked to the inviter and the inviter's two nearest ancestors.
func (s *memberService) RegisterMember(ctx context.Context, req RegisterMemberRequest) (*models.Profile, error) {
	if req.UserID == uuid.Nil {
		return nil, NewValidationError("user id is required")
	}

	var profile *models.Profile
	var referrer *models.Profile
	err := runTransition(ctx, s.uowFactory, "register_member", func(uow UnitOfWork) error {
		profiles := uow.ProfileRepository()

		existing, err := profiles.GetByID(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("failed to check existing profile: %w", err)
		}
		if existing != nil {
			return NewPreconditionError("member already registered")
		}

		referrer = nil
		if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
			referrer, err = profiles.GetByReferralCode(ctx, code)
			if err != nil {
				return fmt.Errorf("failed to resolve referral code: %w", err)
			}
			if referrer == nil {
				return NewValidationError("Unknown referral code")
			}
		}

		code, err := s.newReferralCode(ctx, profiles)
		if err != nil {
			return err
		}

		newProfile := &models.NewProfile{
			UserID:       req.UserID,
			Email:        strings.TrimSpace(req.Email),
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			ReferralCode: code,
		}
		if referrer != nil {
			newProfile.ReferredBy = &referrer.UserID
		}

		profile, err = profiles.Create(ctx, newProfile)
		if err != nil {
			if errors.Is(err, ErrDuplicate) {
				return NewPreconditionError("member already registered")
			}
			return fmt.Errorf("failed to create profile: %w", err)
		}

		if err := uow.RoleRepository().Grant(ctx, req.UserID, models.RoleMember); err != nil {
			return fmt.Errorf("failed to grant member role: %w", err)
		}

		if referrer != nil {
			if err := s.linkReferralChain(ctx, uow, referrer.UserID, req.UserID); err != nil {
				return err
			}
		}

		uow.EventBus().Publish(events.MemberRegisteredEvent{
			UserID:       profile.UserID,
			ReferralCode: profile.ReferralCode,
			ReferredBy:   profile.ReferredBy,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":       profile.UserID,
		"referral_code": profile.ReferralCode,
		"referred":      referrer != nil,
	}).Info("Member registered")

	return profile, nil
}

// linkReferralChain writes the level 1 edge to the inviter and copies the
// inviter's own level 1 and 2 ancestors one level deeper
func (s *memberService) linkReferralChain(ctx context.Context, uow UnitOfWork, referrerID, newMemberID uuid.UUID) error {
	referrals := uow.ReferralRepository()

	if err := referrals.Create(ctx, &models.ReferralEdge{
		UserID:         referrerID,
		ReferredUserID: newMemberID,
		Level:          1,
	}); err != nil {
		return fmt.Errorf("failed to create level 1 referral: %w", err)
	}

	ancestors, err := referrals.GetAncestors(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("failed to get referrer ancestors: %w", err)
	}
	for _, ancestor := range ancestors {
		level := ancestor.Level + 1
		if level > models.MaxReferralLevel {
			continue
		}
		if err := referrals.Create(ctx, &models.ReferralEdge{
			UserID:         ancestor.UserID,
			ReferredUserID: newMemberID,
			Level:          level,
		}); err != nil {
			return fmt.Errorf("failed to create level %d referral: %w", level, err)
		}
	}
	return nil
}

func (s *memberService) newReferralCode(ctx context.Context, profiles ProfileRepository) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code := GenerateReferralCode(uuid.New())
		owner, err := profiles.GetByReferralCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code: %w", err)
		}
		if owner == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique referral code after %d attempts", referralCodeAttempts)
}

// GenerateReferralCode derives a code of the form XXX-XXXX from random bytes
func GenerateReferralCode(seed uuid.UUID) string {
	var b strings.Builder
	for i := 0; i < 7; i++ {
		if i == 3 {
			b.WriteByte('-')
		}
		b.WriteByte(referralCodeAlphabet[int(seed[i])%len(referralCodeAlphabet)])
	}
	return b.String()
}

// ResolveCapability looks up the caller's stored roles
func (s *memberService) ResolveCapability(ctx context.Context, userID uuid.UUID) (Capability, error) {
	var roles []models.Role
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		roles, err = uow.RoleRepository().GetRoles(ctx, userID)
		return err
	})
	if err != nil {
		return Capability{}, fmt.Errorf("failed to resolve roles: %w", err)
	}

	for _, role := range roles {
		if role == models.RoleGovernor {
			return GovernorCapability(userID), nil
		}
	}
	return MemberCapability(userID), nil
}

// GetProfile returns a member's profile
func (s *memberService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile *models.Profile
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		profile, err = uow.ProfileRepository().GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		return nil, NewPreconditionError("profile not found")
	}
	return profile, nil
}

// ListLedger returns a member's newest ledger entries
func (s *memberService) ListLedger(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		entries, err = uow.LedgerRepository().GetByUser(ctx, userID, clampLimit(limit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return entries, nil
}

// SystemTotals sums balances across every member plus the income pool
func (s *memberService) SystemTotals(ctx context.Context, caller Capability) (*models.SystemTotals, error) {
	if err := requireGovernor(caller); err != nil {
		return nil, err
	}

	var totals *models.SystemTotals
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		var err error
		totals, err = uow.ProfileRepository().Totals(ctx)
		if err != nil {
			return fmt.Errorf("failed to sum balances: %w", err)
		}
		totals.IncomePool, err = uow.AdminIncomeRepository().Balance(ctx)
		if err != nil {
			return fmt.Errorf("failed to sum income pool: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// Reconcile compares the balances held on a profile with the sums of its ledger
func (s *memberService) Reconcile(ctx context.Context, userID uuid.UUID) (*models.Reconciliation, error) {
	var result *models.Reconciliation
	err := readOnly(ctx, s.uowFactory, func(uow UnitOfWork) error {
		profile, err := uow.ProfileRepository().GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		if profile == nil {
			return NewPreconditionError("profile not found")
		}

		sums, err := uow.LedgerRepository().SumByBucket(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to sum ledger: %w", err)
		}

		result = &models.Reconciliation{
			UserID: userID,
			Ledger: *sums,
			Profile: models.BucketTotals{
				Vault:   profile.VaultBalance,
				Lending: profile.LendingBalance,
				Frozen:  profile.FrozenBalance,
			},
		}
		result.Balanced = result.Ledger == result.Profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Balanced {
		log.WithFields(log.Fields{
			"user_id": userID,
			"ledger":  result.Ledger,
			"profile": result.Profile,
		}).Error("Profile balances do not match ledger")
	}
	return result, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
