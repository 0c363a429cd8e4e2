// Package webhook provides value types and pure functions for webhook
// fan-out. Webhooks are external HTTP targets notified after a matching
// operation completes. All types are immutable values; all functions are
// pure.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"time"
)

// Webhook represents a registered webhook target (value type).
type Webhook struct {
	Name string
	URL  string

	// OnOperation is the subset of operations this webhook fires on.
	OnOperation []string

	// Headers are sent verbatim with every delivery.
	Headers map[string]string

	// Secret, when non-empty, enables HMAC-SHA256 payload signing.
	Secret string

	// TimeoutMS bounds a single delivery attempt (0 = dispatcher default).
	TimeoutMS int
}

// Event represents a completed operation to be fanned out (value type).
type Event struct {
	Operation  string
	Collection string
	Data       any
	Timestamp  time.Time
}

// Payload is the envelope delivered to a webhook endpoint.
type Payload struct {
	Operation  string `json:"operation"`
	Collection string `json:"collection"`
	Data       any    `json:"data"`
	Timestamp  string `json:"timestamp"`
}

// BuildPayload creates the delivery envelope from an event. An empty
// result (nil, empty list) is delivered as null.
func BuildPayload(event Event) Payload {
	data := event.Data
	if isEmptyResult(data) {
		data = nil
	}
	return Payload{
		Operation:  event.Operation,
		Collection: event.Collection,
		Data:       data,
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
	}
}

// SerializePayload serializes a payload to JSON bytes.
func SerializePayload(payload Payload) ([]byte, error) {
	return json.Marshal(payload)
}

// SignPayload signs a payload with the webhook secret using HMAC-SHA256.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies that a signature matches the payload.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SubscribesTo checks if a webhook fires on the given operation.
func SubscribesTo(w Webhook, operation string) bool {
	for _, op := range w.OnOperation {
		if op == operation {
			return true
		}
	}
	return false
}

// FilterForOperation returns webhooks that fire on the given operation.
func FilterForOperation(webhooks []Webhook, operation string) []Webhook {
	var out []Webhook
	for _, w := range webhooks {
		if SubscribesTo(w, operation) {
			out = append(out, w)
		}
	}
	return out
}

// Merge unions globally registered webhooks with collection-specific ones.
// Order is globals first, then collection webhooks, preserving declaration
// order within each list.
func Merge(global, collection []Webhook) []Webhook {
	out := make([]Webhook, 0, len(global)+len(collection))
	out = append(out, global...)
	out = append(out, collection...)
	return out
}

// isEmptyResult reports whether an operation result should be sent as null.
func isEmptyResult(data any) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	}
	return false
}
