package agent

import "fmt"

// Request is the payload of a task message: one action with its
// parameters. Actions are free-form strings understood by the recipient
// capability (e.g. "schedule_meeting", "find_contact").
type Request struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseStatus enumerates the terminal states of a handled task.
type ResponseStatus string

const (
	// ResponseSuccess means the action completed and Data holds the result.
	ResponseSuccess ResponseStatus = "success"

	// ResponseError means the action failed; Message explains why.
	ResponseError ResponseStatus = "error"

	// ResponseAmbiguous means the action matched more than one candidate
	// and Meetings lists the options to choose from.
	ResponseAmbiguous ResponseStatus = "ambiguous"

	// ResponsePartial means the primary effect succeeded but a secondary
	// one did not (e.g. event created, invite not sent).
	ResponsePartial ResponseStatus = "partial_success"
)

// Meeting describes one calendar event candidate offered during
// disambiguation.
type Meeting struct {
	ID        string `json:"meeting_id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Response is the payload of a task_response message.
type Response struct {
	Status ResponseStatus `json:"status"`

	// Data carries result fields on success (e.g. "email", "event_id").
	Data map[string]any `json:"data,omitempty"`

	// Message is a human-readable note, set on error and partial results.
	Message string `json:"message,omitempty"`

	// Meetings lists candidates when Status is ResponseAmbiguous.
	Meetings []Meeting `json:"meetings,omitempty"`

	// Action and Params describe a follow-up the recipient should issue
	// once ambiguity is resolved (e.g. "cancel_meeting_by_id").
	Action string         `json:"action_to_perform,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Success builds a success response around the given result fields.
func Success(data map[string]any) *Response {
	return &Response{Status: ResponseSuccess, Data: data}
}

// Errorf builds an error response with a formatted message.
func Errorf(format string, args ...any) *Response {
	return &Response{Status: ResponseError, Message: fmt.Sprintf(format, args...)}
}

// DecodeRequest validates and deserializes a task payload. A request
// with no action is rejected at the boundary so handlers never see one.
func DecodeRequest(m *Message) (*Request, error) {
	var req Request
	if err := m.UnmarshalPayload(&req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Action == "" {
		return nil, fmt.Errorf("request from %s has no action", m.Sender)
	}
	return &req, nil
}

// DecodeResponse validates and deserializes a task_response payload.
func DecodeResponse(m *Message) (*Response, error) {
	var resp Response
	if err := m.UnmarshalPayload(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch resp.Status {
	case ResponseSuccess, ResponseError, ResponseAmbiguous, ResponsePartial:
		return &resp, nil
	default:
		return nil, fmt.Errorf("response from %s has unknown status %q", m.Sender, resp.Status)
	}
}
