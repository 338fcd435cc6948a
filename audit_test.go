package schnorrkel

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditEventBuilder(t *testing.T) {
	curve := NewSecp256k1Curve()
	kp, _ := GenerateKeyPair(curve)

	event := NewAuditEventBuilder(AuditEventPartialSigned, ReasonSigning).
		WithSession("session-1").
		WithCurve(curve.Name()).
		WithPublicKey(kp.PublicKey()).
		WithFingerprint("fp").
		WithParticipantCount(3).
		WithMetadata("round", 2).
		Build()

	if event.EventID == "" || event.Timestamp.IsZero() {
		t.Fatal("Event must carry an ID and timestamp")
	}
	if !event.Success {
		t.Fatal("Events default to success")
	}
	if event.PublicKey != kp.PublicKey().String() {
		t.Fatal("Public key not recorded")
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	var decoded AuditEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}
	if decoded.SessionID != "session-1" || decoded.ParticipantCount != 3 {
		t.Fatalf("Event lost fields: %+v", decoded)
	}
}

func TestAuditEventIDsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewAuditEventBuilder(AuditEventNonceGenerated, ReasonNewSession).Build().EventID
		if seen[id] {
			t.Fatalf("Duplicate event ID %s", id)
		}
		seen[id] = true
	}
}

func TestZapAuditHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := NewZapAuditHandler(zap.New(core))

	curve := NewSecp256k1Curve()
	signers, keys := newSigners(t, curve, 2, WithAuditHandler(handler))
	nonces := collectNonces(t, signers)
	msg := HashMessage([]byte("zap"))
	if _, err := signers[0].Sign(msg, keys, nonces); err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	_, _ = signers[0].Sign(msg, keys, nonces)

	if n := logs.FilterMessage("key pair ready").Len(); n != 2 {
		t.Fatalf("Expected 2 key events, got %d", n)
	}
	if n := logs.FilterMessage("partial signature produced").Len(); n != 1 {
		t.Fatalf("Expected 1 partial event, got %d", n)
	}
	reuse := logs.FilterMessage("nonce commitment presented twice").All()
	if len(reuse) != 1 {
		t.Fatalf("Expected 1 reuse event, got %d", len(reuse))
	}
	if reuse[0].Level != zapcore.ErrorLevel {
		t.Fatalf("Nonce reuse must log at error level, got %s", reuse[0].Level)
	}
	if reuse[0].ContextMap()["fingerprint"] != nonces[0].Fingerprint() {
		t.Fatal("Reuse event must carry the fingerprint")
	}
}

func TestZapAuditHandlerSessionTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := NewZapAuditHandler(zap.New(core))

	s, _, _, _ := newTestSession(t, 2, WithSessionAudit(handler))
	if err := s.Abandon(nil); err != nil {
		t.Fatalf("Failed to abandon: %v", err)
	}

	entries := logs.FilterMessage("session transition").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 transition, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["to"] != "abandoned" || fields["from"] != "created" {
		t.Fatalf("Unexpected transition fields: %v", fields)
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("Abandonment should log at warn, got %s", entries[0].Level)
	}
}

func TestNullAuditHandler(t *testing.T) {
	var h AuditEventHandler = &NullAuditHandler{}
	h.OnKeyGenerated(&AuditEvent{})
	h.OnNonceEvent(&AuditEvent{})
	h.OnPartialSigned(&AuditEvent{})
	h.OnNonceReuse(&AuditEvent{})
	h.OnSessionTransition(&SessionTransitionEvent{})
	h.OnAggregation(&AuditEvent{})
	h.OnValidationFailure(&ValidationFailureEvent{})
}

func TestZapAuditHandlerAggregation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := NewZapAuditHandler(zap.New(core))

	ok := NewAuditEventBuilder(AuditEventAggregation, ReasonProtocolStep).WithSession("s1").Build()
	handler.OnAggregation(ok)
	failed := NewAuditEventBuilder(AuditEventAggregation, ReasonProtocolStep).
		WithSession("s2").
		WithError(ErrVerificationFailure).
		Build()
	handler.OnAggregation(failed)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["session_id"] != "s1" {
		t.Fatalf("Unexpected success entry: %+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["error"] == nil {
		t.Fatalf("Unexpected failure entry: %+v", entries[1])
	}
}
