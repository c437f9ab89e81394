package log

import "settle/internal/core"

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldRunID        = "run_id"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldPeriod       = "period"
	FieldParticipants = "participants"
	FieldTransactions = "transactions"
	FieldTotalCents   = "total_cents"
	FieldBackend      = "backend"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentSettlement = "settlement"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpRead     = "read"
	OpList     = "list"
	OpSettle   = "settle"
	OpPublish  = "publish"
	OpSync     = "sync"
	OpImport   = "import"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRunID adds the settlement run ID
func (f LogFields) WithRunID(runID string) LogFields {
	f[FieldRunID] = runID
	return f
}

// WithError adds error field and its category
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithLedger adds period and ledger size fields
func (f LogFields) WithLedger(period core.Period, ledger core.Ledger) LogFields {
	f[FieldPeriod] = int(period)
	f[FieldParticipants] = len(ledger)
	f[FieldTotalCents] = int64(ledger.Total())
	return f
}

// WithTransactions adds the number of emitted transactions
func (f LogFields) WithTransactions(n int) LogFields {
	f[FieldTransactions] = n
	return f
}

// WithHTTP adds HTTP request/response fields
func (f LogFields) WithHTTP(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
