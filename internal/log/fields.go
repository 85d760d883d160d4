package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldDistributionID = "distribution_id"
	FieldPayees         = "payees"
	FieldTotalRequested = "total_requested"
	FieldDistributed    = "total_cash_distributed"
	FieldBitTotal       = "bit_total"
	FieldTransfers      = "transfers"
	FieldRemaining      = "remaining_in_register"
	FieldDistributable  = "distributable"
	FieldNeeded         = "needed"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentDistribution = "distribution"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
	ComponentCache        = "cache"
)

// Operations defines standard operation names
const (
	OpDistribute = "distribute"
	OpRecord     = "record"
	OpPublish    = "publish"
	OpExport     = "export"
	OpValidate   = "validate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithDistributionID(id string) LogFields {
	if id != "" {
		f[FieldDistributionID] = id
	}
	return f
}

// WithSummary adds the reported totals of a distribution
func (f LogFields) WithSummary(distributed, bitTotal, remaining int64, transfers int) LogFields {
	f[FieldDistributed] = distributed
	f[FieldBitTotal] = bitTotal
	f[FieldRemaining] = remaining
	f[FieldTransfers] = transfers
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
