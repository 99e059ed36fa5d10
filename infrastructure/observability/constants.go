package observability

// Metric name prefixes
const (
	MetricPrefix = "cooplend"
)

// Metric names
const (
	// Transition metrics
	TransitionsTotal   = MetricPrefix + ".transitions.total"
	TransitionDuration = MetricPrefix + ".transitions.duration"

	// Balance metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"

	// Sweep metrics
	SweepLoansProcessedTotal = MetricPrefix + ".sweeps.loans_processed_total"
	SweepLoansFailedTotal    = MetricPrefix + ".sweeps.loans_failed_total"
	SweepAmountTotal         = MetricPrefix + ".sweeps.amount_minor_total"
	SweepSkippedTotal        = MetricPrefix + ".sweeps.skipped_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelType       = "type"
	LabelEventType  = "event_type"
	LabelTransition = "transition"
	LabelOutcome    = "outcome"
	LabelSweepKind  = "sweep_kind"
)
