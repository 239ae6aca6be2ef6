package tray

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Tray statuses.
const (
	StatusAvailable    = "available"
	StatusOccupied     = "occupied"
	StatusMaintenance  = "maintenance"
	StatusOutOfService = "out-of-service"
)

var (
	ErrTrayNotFound         = errors.New("tray not found")
	ErrTrayNotAvailable     = errors.New("tray is not available")
	ErrTrayNotOccupied      = errors.New("tray is not occupied")
	ErrTrayOccupied         = errors.New("tray is occupied")
	ErrTrayNotInMaintenance = errors.New("tray is not in maintenance")
	ErrMissingReason        = errors.New("maintenance reason is required")
	ErrMissingCode          = errors.New("tray code is required")
	ErrInvalidStatus        = errors.New("invalid tray status")
)

// Tray maps to the storage_tray table: one physical body-storage slot.
// At most one case occupies a tray at a time.
type Tray struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Code              string     `db:"code" json:"code"`
	Status            string     `db:"status" json:"status"`
	CaseID            *uuid.UUID `db:"case_id" json:"case_id,omitempty"`
	AssignedAt        *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	AssignedBy        *string    `db:"assigned_by" json:"assigned_by,omitempty"`
	ReleasedAt        *time.Time `db:"released_at" json:"released_at,omitempty"`
	ReleasedBy        *string    `db:"released_by" json:"released_by,omitempty"`
	MaintenanceReason *string    `db:"maintenance_reason" json:"maintenance_reason,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

var validStatuses = map[string]bool{
	StatusAvailable:    true,
	StatusOccupied:     true,
	StatusMaintenance:  true,
	StatusOutOfService: true,
}

// OccupiedFor returns how long the tray has held its current case.
// Zero when the tray is not occupied.
func (t *Tray) OccupiedFor(now time.Time) time.Duration {
	if t.Status != StatusOccupied || t.AssignedAt == nil {
		return 0
	}
	return now.Sub(*t.AssignedAt)
}

// OccupancyAlert is one entry of the long-occupancy operational report.
type OccupancyAlert struct {
	Tray          *Tray   `json:"tray"`
	OccupiedHours float64 `json:"occupied_hours"`
}
