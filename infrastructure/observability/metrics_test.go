package observability

import (
	"context"
	"testing"
	"time"

	"cooplend/config"
	"cooplend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newManualProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.createInstruments(provider.Meter("test")))
	mp.initialized = true
	return mp, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsProvider_DisabledIsNoop(t *testing.T) {
	mp := NewMetricsProvider(config.NewTestConfig())
	require.NoError(t, mp.Initialize(context.Background()))

	assert.NotPanics(t, func() {
		mp.RecordTransition("fund_loan", "ok", time.Millisecond)
		mp.RecordBalanceTransaction(models.TransactionTypeDeposit)
		mp.RecordSweep(&models.SweepResult{Kind: models.SweepKindDefault, Processed: 1})
		mp.RecordNATSMessagePublished("balance_change")
	})
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestMetricsProvider_RecordSweep(t *testing.T) {
	mp, reader := newManualProvider(t)

	mp.RecordSweep(&models.SweepResult{Kind: models.SweepKindDailyInterest, Processed: 3, Failed: 1, Amount: 99})
	mp.RecordSweep(&models.SweepResult{Kind: models.SweepKindDailyInterest, Skipped: true, Reason: "Already ran today"})

	assert.Equal(t, int64(3), sumOf(t, reader, SweepLoansProcessedTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, SweepLoansFailedTotal))
	assert.Equal(t, int64(99), sumOf(t, reader, SweepAmountTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, SweepSkippedTotal))
}

func TestMetricsProvider_RecordTransition(t *testing.T) {
	mp, reader := newManualProvider(t)

	mp.RecordTransition("repay_loan", "ok", 12*time.Millisecond)
	mp.RecordTransition("repay_loan", "insufficient_funds", 3*time.Millisecond)
	mp.RecordBalanceTransaction(models.TransactionTypeLoanRepayment)

	assert.Equal(t, int64(2), sumOf(t, reader, TransitionsTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, BalanceTransactionsTotal))
}
