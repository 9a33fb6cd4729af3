// Package queue defines message payloads exchanged over the message broker.
package queue

// ConfirmationEmailEvent is published whenever a confirmation email should
// go out: once at registration and again on every resend request. It
// carries everything a mail worker needs to render and deliver the message
// without querying the primary database.
type ConfirmationEmailEvent struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Token       string `json:"token"`        // signed email token, embedded in the confirmation link
	ConfirmPath string `json:"confirm_path"` // relative confirmation endpoint, e.g. /api/users/confirmed_email/<token>
	RequestedAt string `json:"requested_at"`
}
