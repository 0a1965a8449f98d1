package types

import "github.com/google/uuid"

// Session is the response of GET /session. CSRFToken must accompany every
// form POST made on behalf of UserID.
type Session struct {
	UserID    uuid.UUID `json:"user_id"`
	CSRFToken string    `json:"csrf_token"`
}
