package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldIntent        = "intent"
	FieldWalletID      = "wallet_id"
	FieldToWalletID    = "to_wallet_id"
	FieldTransactionID = "transaction_id"
	FieldCategoryID    = "category_id"
	FieldAmount        = "amount"
	FieldNewBalance    = "new_balance"
	FieldAction        = "action"
	FieldQueueItemID   = "queue_item_id"
	FieldAttempt       = "attempt"
	FieldCount         = "count"
	FieldDuration      = "duration_ms"
	FieldClientIP      = "client_ip"
	FieldPath          = "path"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentLedger   = "ledger"
	ComponentTracker  = "tracker"
	ComponentStorage  = "storage"
	ComponentRemote   = "remote"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentDebounce = "debounce"
	ComponentCache    = "cache"
	ComponentBackend  = "backend"
	ComponentHTTP     = "http"
)

// Operations defines standard operation names
const (
	OpSubmit   = "submit"
	OpSave     = "save"
	OpLoad     = "load"
	OpPush     = "push"
	OpPull     = "pull"
	OpPublish  = "publish"
	OpEnqueue  = "enqueue"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds the error field when err is non-nil.
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

// WithTransfer adds the wallet pair and amount of a ledger mutation.
func (f LogFields) WithTransfer(walletID, toWalletID string, amount int64) LogFields {
	f[FieldWalletID] = walletID
	if toWalletID != "" {
		f[FieldToWalletID] = toWalletID
	}
	f[FieldAmount] = amount
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
