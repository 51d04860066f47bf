package models

import (
	"fmt"
	"time"
)

// AuditAction names a user action worth recording.
type AuditAction string

const (
	ActionLogin           AuditAction = "login"
	ActionLoginFailed     AuditAction = "login_failed"
	ActionLogout          AuditAction = "logout"
	ActionStart           AuditAction = "start"
	ActionPause           AuditAction = "pause"
	ActionVerify          AuditAction = "verify"
	ActionAdd             AuditAction = "add"
	ActionSessionRejected AuditAction = "session_rejected"
)

// AuditEntry is one recorded action. Passwords never reach it.
type AuditEntry struct {
	ID         string
	Sequence   int
	Action     AuditAction
	Username   string
	Target     string // torrent hash or magnet link, when the action has one
	RemoteAddr string
	Detail     string
	CreatedAt  time.Time
}

// Validate checks the fields the audit table requires.
func (e AuditEntry) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("audit entry action is required")
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("audit entry timestamp is required")
	}
	return nil
}
