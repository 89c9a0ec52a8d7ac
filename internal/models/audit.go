package models

import "time"

const (
	AuditReservationCancel       = "reservation.cancel"
	AuditReservationAdminConfirm = "reservation.admin_confirm"
	AuditBlockCreate             = "block.create"
	AuditBlockDelete             = "block.delete"
	AuditSettingUpdate           = "setting.update"
	AuditWaitlistAdminNotify     = "waitlist.admin_notify"
	AuditWaitlistDelete          = "waitlist.delete"
)

type AuditEntry struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key" yaml:"key"`
	Value     string    `json:"value" yaml:"value"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}
