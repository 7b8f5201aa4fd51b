package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/camcore/internal/camera"
	"github.com/smazurov/camcore/internal/events"
)

// Subject prefixes for NATS topics.
const (
	SubjectRPCPrefix    = "camcore.rpc"
	SubjectEventsPrefix = "camcore.events"
)

// commandQueue is the queue group every command responder joins, so a
// request is served once even with several bridges attached.
const commandQueue = "camcore"

// SubjectRPC returns the request subject for a method.
func SubjectRPC(method string) string {
	return fmt.Sprintf("%s.%s", SubjectRPCPrefix, method)
}

// SubjectEvent returns the subject camera events of the given name are
// published on.
func SubjectEvent(name string) string {
	return fmt.Sprintf("%s.%s", SubjectEventsPrefix, name)
}

// methodFromSubject extracts the method from a request subject.
func methodFromSubject(subject string) string {
	return strings.TrimPrefix(subject, SubjectRPCPrefix+".")
}

// CommandMessage is the request body sent on camcore.rpc.{method}.
type CommandMessage struct {
	Args      map[string]any `json:"args,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Marshal serializes the message to JSON.
func (m CommandMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ErrorBody is the (code, message, details) triple of a failed call.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ReplyMessage answers a CommandMessage.
type ReplyMessage struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ReplyMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Err returns the reply's error as a *camera.Error, or nil on success.
func (m ReplyMessage) Err() error {
	if m.OK {
		return nil
	}
	if m.Error == nil {
		return camera.NewError("INTERNAL", "malformed reply", "", nil)
	}
	return camera.NewError(m.Error.Code, m.Error.Message, m.Error.Details, nil)
}

// newReply builds the reply for a dispatch result.
func newReply(result any, err error) ReplyMessage {
	if err != nil {
		var ce *camera.Error
		body := &ErrorBody{Code: "INTERNAL", Message: err.Error()}
		if errors.As(err, &ce) {
			body = &ErrorBody{Code: ce.Code, Message: ce.Message, Details: ce.Details}
			if ce.Cause != nil && body.Details == "" {
				body.Details = ce.Cause.Error()
			}
		}
		return ReplyMessage{Error: body}
	}
	if result == nil {
		return ReplyMessage{OK: true}
	}
	data, mErr := json.Marshal(result)
	if mErr != nil {
		return ReplyMessage{Error: &ErrorBody{Code: "INTERNAL", Message: "failed to encode result", Details: mErr.Error()}}
	}
	return ReplyMessage{OK: true, Result: data}
}

// EventMessage carries one camera event on camcore.events.{name}.
type EventMessage struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Marshal serializes the message to JSON.
func (m EventMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalCommand deserializes a CommandMessage from JSON. An empty body is
// a call without arguments.
func UnmarshalCommand(data []byte) (CommandMessage, error) {
	var m CommandMessage
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalReply deserializes a ReplyMessage from JSON.
func UnmarshalReply(data []byte) (ReplyMessage, error) {
	var m ReplyMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalEvent deserializes an EventMessage from JSON.
func UnmarshalEvent(data []byte) (EventMessage, error) {
	var m EventMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// EventName returns the subject suffix for a camera event.
func EventName(ev events.Event) string {
	switch ev.(type) {
	case events.SessionStateChangedEvent:
		return "session"
	case events.PreviewRequestEvent:
		return "preview"
	case events.PhotoCapturedEvent:
		return "photo.captured"
	case events.PhotoFailedEvent:
		return "photo.failed"
	case events.SensorSwitchedEvent:
		return "sensor"
	case events.ListenerFailedEvent:
		return "listener"
	case events.LogEntryEvent:
		return "log"
	}
	return "unknown"
}
