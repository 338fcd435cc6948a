package schnorrkel

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditEventType represents the type of audit event
type AuditEventType string

const (
	// Key and nonce lifecycle events
	AuditEventKeyGenerated   AuditEventType = "key_generated"
	AuditEventNonceGenerated AuditEventType = "nonce_generated"
	AuditEventNonceDiscarded AuditEventType = "nonce_discarded"
	AuditEventNonceReuse     AuditEventType = "nonce_reuse"
	AuditEventPartialSigned  AuditEventType = "partial_signed"

	// Session events
	AuditEventSessionTransition AuditEventType = "session_transition"
	AuditEventAggregation       AuditEventType = "aggregation"

	// Error events
	AuditEventValidationFailure AuditEventType = "validation_failure"
)

// AuditEventReason represents why an event occurred
type AuditEventReason string

const (
	ReasonSignerInit      AuditEventReason = "signer_init"
	ReasonNewSession      AuditEventReason = "new_session"
	ReasonManualTrigger   AuditEventReason = "manual_trigger"
	ReasonSigning         AuditEventReason = "signing"
	ReasonProtocolStep    AuditEventReason = "protocol_step"
	ReasonTimeout         AuditEventReason = "timeout"
	ReasonMismatch        AuditEventReason = "mismatch"
	ReasonValidationError AuditEventReason = "validation_error"
)

// AuditEvent represents a single audit event
type AuditEvent struct {
	EventID   string           `json:"event_id"`
	Timestamp time.Time        `json:"timestamp"`
	EventType AuditEventType   `json:"event_type"`
	Reason    AuditEventReason `json:"reason"`

	SessionID   string `json:"session_id,omitempty"`
	CurveName   string `json:"curve_name,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`

	ParticipantCount int `json:"participant_count,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SessionTransitionEvent records a session state change
type SessionTransitionEvent struct {
	AuditEvent

	From SessionState `json:"from"`
	To   SessionState `json:"to"`
}

// ValidationFailureEvent contains details about validation failures
type ValidationFailureEvent struct {
	AuditEvent

	ValidationType string                 `json:"validation_type"` // "signer_set", "nonce", "challenge"
	FailureReason  string                 `json:"failure_reason"`
	InputValues    map[string]interface{} `json:"input_values,omitempty"`
}

// AuditEventHandler defines the interface for handling audit events.
// Applications implement this interface to record events according to their needs.
type AuditEventHandler interface {
	// OnKeyGenerated is called when a signer key pair is created or loaded
	OnKeyGenerated(event *AuditEvent)

	// OnNonceEvent is called when a nonce commitment is generated or discarded
	OnNonceEvent(event *AuditEvent)

	// OnPartialSigned is called after a partial signature is produced
	OnPartialSigned(event *AuditEvent)

	// OnNonceReuse is called when a consumed commitment is presented again
	OnNonceReuse(event *AuditEvent)

	// OnSessionTransition is called on every session state change
	OnSessionTransition(event *SessionTransitionEvent)

	// OnAggregation is called once a session has summed its partials, with
	// the outcome of self-verification
	OnAggregation(event *AuditEvent)

	// OnValidationFailure is called when validation fails
	OnValidationFailure(event *ValidationFailureEvent)
}

// NullAuditHandler is a no-op implementation of AuditEventHandler
type NullAuditHandler struct{}

func (n *NullAuditHandler) OnKeyGenerated(event *AuditEvent)                  {}
func (n *NullAuditHandler) OnNonceEvent(event *AuditEvent)                    {}
func (n *NullAuditHandler) OnPartialSigned(event *AuditEvent)                 {}
func (n *NullAuditHandler) OnNonceReuse(event *AuditEvent)                    {}
func (n *NullAuditHandler) OnSessionTransition(event *SessionTransitionEvent) {}
func (n *NullAuditHandler) OnAggregation(event *AuditEvent)                   {}
func (n *NullAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {}

// ZapAuditHandler writes audit events to a zap logger. Nonce reuse is logged
// at error level; everything else at info or debug.
type ZapAuditHandler struct {
	logger *zap.Logger
}

// NewZapAuditHandler creates an audit handler backed by logger
func NewZapAuditHandler(logger *zap.Logger) *ZapAuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAuditHandler{logger: logger.Named("audit")}
}

func (h *ZapAuditHandler) fields(e *AuditEvent) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", e.EventID),
		zap.String("event_type", string(e.EventType)),
		zap.String("reason", string(e.Reason)),
		zap.Bool("success", e.Success),
	}
	if e.SessionID != "" {
		fields = append(fields, zap.String("session_id", e.SessionID))
	}
	if e.CurveName != "" {
		fields = append(fields, zap.String("curve", e.CurveName))
	}
	if e.PublicKey != "" {
		fields = append(fields, zap.String("public_key", e.PublicKey))
	}
	if e.Fingerprint != "" {
		fields = append(fields, zap.String("fingerprint", e.Fingerprint))
	}
	if e.ParticipantCount > 0 {
		fields = append(fields, zap.Int("participants", e.ParticipantCount))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if len(e.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", e.Metadata))
	}
	return fields
}

func (h *ZapAuditHandler) OnKeyGenerated(event *AuditEvent) {
	h.logger.Info("key pair ready", h.fields(event)...)
}

func (h *ZapAuditHandler) OnNonceEvent(event *AuditEvent) {
	h.logger.Debug("nonce commitment", h.fields(event)...)
}

func (h *ZapAuditHandler) OnPartialSigned(event *AuditEvent) {
	h.logger.Info("partial signature produced", h.fields(event)...)
}

func (h *ZapAuditHandler) OnNonceReuse(event *AuditEvent) {
	h.logger.Error("nonce commitment presented twice", h.fields(event)...)
}

func (h *ZapAuditHandler) OnSessionTransition(event *SessionTransitionEvent) {
	fields := append(h.fields(&event.AuditEvent),
		zap.String("from", event.From.String()),
		zap.String("to", event.To.String()))
	if event.Success {
		h.logger.Info("session transition", fields...)
		return
	}
	h.logger.Warn("session transition", fields...)
}

func (h *ZapAuditHandler) OnAggregation(event *AuditEvent) {
	if event.Success {
		h.logger.Info("aggregate signature verified", h.fields(event)...)
		return
	}
	h.logger.Error("aggregate signature failed self-verification", h.fields(event)...)
}

func (h *ZapAuditHandler) OnValidationFailure(event *ValidationFailureEvent) {
	fields := append(h.fields(&event.AuditEvent),
		zap.String("validation_type", event.ValidationType),
		zap.String("failure_reason", event.FailureReason))
	h.logger.Warn("validation failure", fields...)
}

// AuditEventBuilder helps construct audit events with proper defaults
type AuditEventBuilder struct {
	event *AuditEvent
}

// NewAuditEventBuilder creates a new audit event builder
func NewAuditEventBuilder(eventType AuditEventType, reason AuditEventReason) *AuditEventBuilder {
	return &AuditEventBuilder{
		event: &AuditEvent{
			EventID:   generateEventID(),
			Timestamp: time.Now(),
			EventType: eventType,
			Reason:    reason,
			Success:   true, // Default to success, can be overridden
			Metadata:  make(map[string]interface{}),
		},
	}
}

// WithSession sets the session identifier
func (b *AuditEventBuilder) WithSession(id string) *AuditEventBuilder {
	b.event.SessionID = id
	return b
}

// WithCurve sets the curve name for the event
func (b *AuditEventBuilder) WithCurve(curveName string) *AuditEventBuilder {
	b.event.CurveName = curveName
	return b
}

// WithPublicKey records the signer the event concerns
func (b *AuditEventBuilder) WithPublicKey(p Point) *AuditEventBuilder {
	if p != nil {
		b.event.PublicKey = p.String()
	}
	return b
}

// WithFingerprint records the nonce commitment the event concerns
func (b *AuditEventBuilder) WithFingerprint(fp string) *AuditEventBuilder {
	b.event.Fingerprint = fp
	return b
}

// WithParticipantCount sets the signer set size
func (b *AuditEventBuilder) WithParticipantCount(n int) *AuditEventBuilder {
	b.event.ParticipantCount = n
	return b
}

// WithError marks the event as failed and sets error information
func (b *AuditEventBuilder) WithError(err error) *AuditEventBuilder {
	b.event.Success = false
	if err != nil {
		b.event.Error = err.Error()
	}
	return b
}

// WithMetadata adds metadata to the event
func (b *AuditEventBuilder) WithMetadata(key string, value interface{}) *AuditEventBuilder {
	b.event.Metadata[key] = value
	return b
}

// Build returns the constructed audit event
func (b *AuditEventBuilder) Build() *AuditEvent {
	return b.event
}

// BuildSessionTransition returns a SessionTransitionEvent
func (b *AuditEventBuilder) BuildSessionTransition(from, to SessionState) *SessionTransitionEvent {
	return &SessionTransitionEvent{
		AuditEvent: *b.event,
		From:       from,
		To:         to,
	}
}

// BuildValidationFailure returns a ValidationFailureEvent
func (b *AuditEventBuilder) BuildValidationFailure(validationType, failureReason string, inputValues map[string]interface{}) *ValidationFailureEvent {
	return &ValidationFailureEvent{
		AuditEvent:     *b.event,
		ValidationType: validationType,
		FailureReason:  failureReason,
		InputValues:    inputValues,
	}
}

func generateEventID() string {
	return uuid.NewString()
}

func auditOrNull(h AuditEventHandler) AuditEventHandler {
	if h == nil {
		return &NullAuditHandler{}
	}
	return h
}
