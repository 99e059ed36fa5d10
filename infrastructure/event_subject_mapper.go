package infrastructure

import (
	"fmt"

	"cooplend/events"
)

// DomainEventStream is the JetStream stream every engine event lands in
const DomainEventStream = "ledger_events"

var eventSubjects = map[events.EventType]string{
	events.EventTypeBalanceChange:      "ledger.balance.changed",
	events.EventTypeMemberRegistered:   "ledger.member.registered",
	events.EventTypeDepositReviewed:    "ledger.deposit.reviewed",
	events.EventTypeWithdrawalReviewed: "ledger.withdrawal.reviewed",
	events.EventTypeLoanStateChange:    "ledger.loan.state_changed",
	events.EventTypeReferralPaid:       "ledger.referral.paid",
	events.EventTypeProfitDistributed:  "ledger.profit.distributed",
	events.EventTypeSettingChanged:     "ledger.setting.changed",
}

// EventSubjectMapper maps domain events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := eventSubjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("ledger.unknown.%s", event.Type())
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	subjects := make([]string, 0, len(events.AllEventTypes))
	for _, eventType := range events.AllEventTypes {
		subjects = append(subjects, eventSubjects[eventType])
	}
	return subjects
}
