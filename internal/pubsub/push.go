// Package pubsub decodes Pub/Sub push delivery envelopes.
package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// PushEnvelope is the body Pub/Sub posts to a push endpoint.
type PushEnvelope struct {
	Message struct {
		Data       string            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePush unwraps a push envelope and unmarshals the base64 JSON payload
// into target. It returns the message ID for logging.
func DecodePush(body []byte, target interface{}) (messageID string, err error) {
	var envelope PushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode push envelope: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return envelope.Message.MessageID, fmt.Errorf("decode push data: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return envelope.Message.MessageID, fmt.Errorf("decode push payload: %w", err)
	}
	return envelope.Message.MessageID, nil
}

// EncodePush builds a push envelope for a payload. Used by tests and the
// local development publisher.
func EncodePush(messageID string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal push payload: %w", err)
	}
	var envelope PushEnvelope
	envelope.Message.Data = base64.StdEncoding.EncodeToString(data)
	envelope.Message.MessageID = messageID
	return json.Marshal(envelope)
}
