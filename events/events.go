package events

import (
	"context"
	"sync"

	"cooplend/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange      EventType = "balance_change"
	EventTypeMemberRegistered   EventType = "member_registered"
	EventTypeDepositReviewed    EventType = "deposit_reviewed"
	EventTypeWithdrawalReviewed EventType = "withdrawal_reviewed"
	EventTypeLoanStateChange    EventType = "loan_state_change"
	EventTypeReferralPaid       EventType = "referral_paid"
	EventTypeProfitDistributed  EventType = "profit_distributed"
	EventTypeSettingChanged     EventType = "setting_changed"
)

// AllEventTypes lists every event type published by the engine
var AllEventTypes = []EventType{
	EventTypeBalanceChange,
	EventTypeMemberRegistered,
	EventTypeDepositReviewed,
	EventTypeWithdrawalReviewed,
	EventTypeLoanStateChange,
	EventTypeReferralPaid,
	EventTypeProfitDistributed,
	EventTypeSettingChanged,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred in one bucket
type BalanceChangeEvent struct {
	UserID          uuid.UUID              `json:"user_id"`
	Bucket          models.Bucket          `json:"bucket"`
	OldBalance      models.Money           `json:"old_balance"`
	NewBalance      models.Money           `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    models.Money           `json:"change_amount"`
	ReferenceID     *uuid.UUID             `json:"reference_id,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// MemberRegisteredEvent represents a new member profile
type MemberRegisteredEvent struct {
	UserID       uuid.UUID  `json:"user_id"`
	ReferralCode string     `json:"referral_code"`
	ReferredBy   *uuid.UUID `json:"referred_by,omitempty"`
}

func (e MemberRegisteredEvent) Type() EventType {
	return EventTypeMemberRegistered
}

// DepositReviewedEvent represents a governor decision on a deposit
type DepositReviewedEvent struct {
	DepositID  uuid.UUID            `json:"deposit_id"`
	UserID     uuid.UUID            `json:"user_id"`
	Status     models.RequestStatus `json:"status"`
	Amount     models.Money         `json:"amount"`
	Fee        models.Money         `json:"fee"`
	ReviewedBy uuid.UUID            `json:"reviewed_by"`
}

func (e DepositReviewedEvent) Type() EventType {
	return EventTypeDepositReviewed
}

// WithdrawalReviewedEvent represents a governor decision on a withdrawal
type WithdrawalReviewedEvent struct {
	WithdrawalID uuid.UUID            `json:"withdrawal_id"`
	UserID       uuid.UUID            `json:"user_id"`
	Status       models.RequestStatus `json:"status"`
	Amount       models.Money         `json:"amount"`
	Fee          models.Money         `json:"fee"`
	Reason       string               `json:"reason,omitempty"`
	ReviewedBy   uuid.UUID            `json:"reviewed_by"`
}

func (e WithdrawalReviewedEvent) Type() EventType {
	return EventTypeWithdrawalReviewed
}

// LoanStateChangeEvent represents a loan state machine transition
type LoanStateChangeEvent struct {
	LoanID     uuid.UUID         `json:"loan_id"`
	BorrowerID uuid.UUID         `json:"borrower_id"`
	LenderID   *uuid.UUID        `json:"lender_id,omitempty"`
	OldStatus  models.LoanStatus `json:"old_status"`
	NewStatus  models.LoanStatus `json:"new_status"`
	Reviewed   bool              `json:"reviewed"`
	Amount     models.Money      `json:"amount"`
}

func (e LoanStateChangeEvent) Type() EventType {
	return EventTypeLoanStateChange
}

// ReferralPaidEvent represents a commission paid from a deposit fee pool
type ReferralPaidEvent struct {
	DepositID  uuid.UUID    `json:"deposit_id"`
	AncestorID uuid.UUID    `json:"ancestor_id"`
	Level      int          `json:"level"`
	Amount     models.Money `json:"amount"`
}

func (e ReferralPaidEvent) Type() EventType {
	return EventTypeReferralPaid
}

// ProfitDistributedEvent represents an annual distribution of the income pool
type ProfitDistributedEvent struct {
	Year        int          `json:"year"`
	TotalProfit models.Money `json:"total_profit"`
	Distributed models.Money `json:"distributed"`
	Members     int          `json:"members"`
}

func (e ProfitDistributedEvent) Type() EventType {
	return EventTypeProfitDistributed
}

// SettingChangedEvent represents a governor changing a system setting
type SettingChangedEvent struct {
	Key       string    `json:"key"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	UpdatedBy uuid.UUID `json:"updated_by"`
}

func (e SettingChangedEvent) Type() EventType {
	return EventTypeSettingChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")
}

// SubscribeAll adds a handler for every known event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range AllEventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers on main event bus")

	// Call handlers asynchronously to avoid blocking
	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until it commits.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Pending returns the number of events waiting for commit
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// called after successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Events outlive the request that committed them
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// called after db rollback or to clear state.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
