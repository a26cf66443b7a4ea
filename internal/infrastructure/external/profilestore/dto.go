// Package profilestore implements the HTTP client of the remote profile store:
// POST /register, POST /update_user and POST /get_user.
package profilestore

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLATFORM ID
// ══════════════════════════════════════════════════════════════════════════════

// WireID is a platform_user_id as the store sends it: a string or a bare
// number. Null decodes to empty; any other JSON value keeps its raw text and
// fails the digit pattern downstream.
type WireID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *WireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = WireID(s)
	default:
		*id = WireID(data)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER DTO
// ══════════════════════════════════════════════════════════════════════════════

// UserDTO is the full profile field set as the store expects it. Absent values
// travel as the literal "не указано".
type UserDTO struct {
	PlatformUserID       WireID `json:"platform_user_id"`
	TelegramUserID       int64  `json:"telegram_user_id"`
	Nickname             string `json:"nickname"`
	Password             string `json:"password"`
	Email                string `json:"email"`
	Identity             string `json:"identity"`
	MainSchoolCode       string `json:"main_school_code"`
	MainSchoolName       string `json:"main_school_name"`
	ClassNumber          string `json:"class_number"`
	ClassLetter          string `json:"class_letter"`
	Specialization       string `json:"specialization"`
	Course               string `json:"course"`
	AdditionalSchoolCode string `json:"additional_school_code"`
	AdditionalSchoolName string `json:"additional_school_name"`
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS AND RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// SaveResponse is returned by /register and /update_user.
type SaveResponse struct {
	PlatformUserID WireID `json:"platform_user_id"`
}

// GetUserRequest is the body of /get_user.
type GetUserRequest struct {
	TelegramUserID int64 `json:"telegram_user_id"`
}

// GetUserResponse is the body returned by /get_user. A missing or null user
// means the store does not know the Telegram id.
type GetUserResponse struct {
	User *UserDTO `json:"user"`
}

// APIErrorDTO is an error body of the store.
type APIErrorDTO struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Detail
	}
	if msg == "" {
		msg = "no message"
	}
	return "profile store: status " + strconv.Itoa(e.Status) + ": " + msg
}
