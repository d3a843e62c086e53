package models

import "time"

type AuditAction string

const (
	AuditActionRegister              AuditAction = "user.register"
	AuditActionLoginFailed           AuditAction = "auth.login_failed"
	AuditActionPasswordChanged       AuditAction = "auth.password_changed"
	AuditActionPasswordReset         AuditAction = "auth.password_reset"
	AuditActionPasswordResetFailed   AuditAction = "auth.password_reset_failed"
	AuditActionRecoveryAnswerSet     AuditAction = "auth.recovery_answer_set"
	AuditActionRecoveryAnswerUpdated AuditAction = "auth.recovery_answer_updated"
	AuditActionUserStatusChanged     AuditAction = "user.status_changed"
	AuditActionUserRoleChanged       AuditAction = "user.role_changed"
	AuditActionUserDeleted           AuditAction = "user.deleted"

	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
)

// AuditEvent is append-only: rows are inserted and listed, never updated.
type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`

	// nil for unauthenticated flows such as the recovery reset
	ActorID    *uint  `gorm:"index" json:"actorId"`
	ActorEmail string `gorm:"size:255" json:"actorEmail"`

	Action      AuditAction `gorm:"size:50;index" json:"action"`
	TargetType  string      `gorm:"size:50" json:"targetType"`
	TargetID    uint        `json:"targetId"`
	Description string      `gorm:"type:text" json:"description"`
	RemoteAddr  string      `gorm:"size:64" json:"remoteAddr"`
}
