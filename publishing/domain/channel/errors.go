package channel

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PublishError carries the platform's own failure message.
type PublishError struct {
	Channel    Kind
	Op         string
	StatusCode int
	Message    string
	Raw        []byte
}

func (e *PublishError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%d): %s", e.Channel, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Channel, e.Op, e.Message)
}

// ErrorMessage returns the text stored on a failed target.
// Platform messages are kept verbatim, other errors use their full chain.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe *PublishError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

// ErrorPayload builds the event payload stored for a failure.
func ErrorPayload(err error) []byte {
	var pe *PublishError
	if errors.As(err, &pe) && len(pe.Raw) > 0 && json.Valid(pe.Raw) {
		return pe.Raw
	}
	payload, _ := json.Marshal(map[string]string{"error": ErrorMessage(err)})
	return payload
}
