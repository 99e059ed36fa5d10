package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cooplend/events"
	"cooplend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessagePublisher struct {
	mock.Mock
}

func (m *mockMessagePublisher) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	args := m.Called(ctx, subject, data, msgID)
	return args.Error(0)
}

type countingRecorder struct {
	published []string
}

func (r *countingRecorder) RecordNATSMessagePublished(eventType string) {
	r.published = append(r.published, eventType)
}

func TestEventSubjectMapper_CoversEveryEventType(t *testing.T) {
	mapper := NewEventSubjectMapper()
	subjects := mapper.GetAllSubjects()

	require.Len(t, subjects, len(events.AllEventTypes))
	seen := map[string]bool{}
	for _, s := range subjects {
		assert.NotEmpty(t, s)
		assert.False(t, seen[s], "duplicate subject %s", s)
		seen[s] = true
	}
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	loanID := uuid.New()
	event := events.LoanStateChangeEvent{
		LoanID:     loanID,
		BorrowerID: uuid.New(),
		OldStatus:  models.LoanStatusPending,
		NewStatus:  models.LoanStatusApproved,
	}

	client := new(mockMessagePublisher)
	var sent []byte
	client.On("Publish", ctx, "ledger.loan.state_changed", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil)
	recorder := &countingRecorder{}

	err := NewNATSEventPublisher(client, NewEventSubjectMapper(), recorder).Publish(ctx, event)

	require.NoError(t, err)
	client.AssertExpectations(t)
	assert.Equal(t, []string{"loan_state_change"}, recorder.published)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(sent, &envelope))
	assert.Equal(t, "loan_state_change", envelope.EventType)
	assert.Equal(t, "cooplend", envelope.SourceService)
	assert.Contains(t, string(envelope.Payload), loanID.String())
}

func TestNATSEventPublisher_PublishErrorIsNotCounted(t *testing.T) {
	ctx := context.Background()
	client := new(mockMessagePublisher)
	client.On("Publish", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no responders"))
	recorder := &countingRecorder{}

	err := NewNATSEventPublisher(client, NewEventSubjectMapper(), recorder).
		Publish(ctx, events.SettingChangedEvent{Key: models.SettingSystemFrozen, NewValue: "true"})

	assert.Error(t, err)
	assert.Empty(t, recorder.published)
}

func TestNATSEventPublisher_AttachForwardsCommittedEvents(t *testing.T) {
	bus := events.NewBus()
	client := new(mockMessagePublisher)
	done := make(chan struct{})
	client.On("Publish", mock.Anything, "ledger.setting.changed", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil).Once()

	NewNATSEventPublisher(client, NewEventSubjectMapper(), nil).Attach(bus)

	tx := events.NewTransactionalBus(bus)
	tx.Publish(events.SettingChangedEvent{Key: models.SettingSystemFrozen, NewValue: "true"})
	require.NoError(t, tx.Flush(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded to NATS")
	}
}
