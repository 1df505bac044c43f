package generation

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTitle is sent as the track title for every paid generation.
const DefaultTitle = "Paid via Telegram Stars"

// StatusSuccess is the status the API reports once tracks are ready.
const StatusSuccess = "SUCCESS"

// ErrValidation is returned when the API rejects the payload with 422.
var ErrValidation = errors.New("generation: payload rejected")

// HTTPError is returned for non-2xx responses other than 422.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generation %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Code feeds the err_code field of handler summaries.
func (e *HTTPError) Code() string {
	return fmt.Sprintf("HTTP_%d", e.StatusCode)
}

// Request is the body of POST /music/generate.
type Request struct {
	Prompt                  string `json:"prompt"`
	CustomMode              bool   `json:"customMode"`
	Style                   string `json:"style,omitempty"`
	Title                   string `json:"title"`
	Instrumental            bool   `json:"instrumental"`
	Model                   string `json:"model"`
	ChatID                  int64  `json:"chatId,omitempty"`
	UserID                  int64  `json:"userId,omitempty"`
	TelegramPaymentChargeID string `json:"telegramPaymentChargeId,omitempty"`
}

type generateResponse struct {
	TaskID string `json:"taskId"`
}

// Track is one generated result.
type Track struct {
	ImageURL string `json:"imageUrl"`
	AudioURL string `json:"audioUrl"`
	Title    string `json:"title"`
}

// StatusEnvelope is the body of GET /music/status/{taskId}.
type StatusEnvelope struct {
	Status string `json:"status"`
	Raw    struct {
		Data struct {
			Response struct {
				SunoData []Track `json:"sunoData"`
			} `json:"response"`
		} `json:"data"`
	} `json:"raw"`
}

// Status is the decoded task status.
type Status struct {
	TaskID string
	Status string
	Tracks []Track
}

// Ready reports whether tracks can be shown.
func (s Status) Ready() bool {
	return strings.EqualFold(s.Status, StatusSuccess) && len(s.Tracks) > 0
}

func (e StatusEnvelope) toStatus(taskID string) Status {
	status := strings.TrimSpace(e.Status)
	if status == "" {
		status = "UNKNOWN"
	}
	tracks := e.Raw.Data.Response.SunoData
	if len(tracks) > 2 {
		tracks = tracks[:2]
	}
	return Status{TaskID: taskID, Status: status, Tracks: tracks}
}
