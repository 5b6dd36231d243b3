package rntmodels

import "time"

// RentalStatus is the lifecycle state of a rental session.
type RentalStatus string

const (
	RentalPending  RentalStatus = "Pending"
	RentalApproved RentalStatus = "Approved"
	RentalRejected RentalStatus = "Rejected"
	RentalStarted  RentalStatus = "Started"
	RentalHalted   RentalStatus = "Halted"
)

// Terminal reports whether no further transitions are allowed from s.
func (s RentalStatus) Terminal() bool {
	return s == RentalRejected || s == RentalHalted
}

// RentalExtension records one extension of a rental's scheduled end.
// Synthesized entries record a correction where the end time itself had
// to be reconstructed before extending.
type RentalExtension struct {
	At          time.Time `json:"at" db:"at"`
	Minutes     int       `json:"minutes" db:"minutes"`
	OldEnd      time.Time `json:"old_end" db:"old_end"`
	NewEnd      time.Time `json:"new_end" db:"new_end"`
	Synthesized bool      `json:"synthesized,omitempty" db:"synthesized"`
}

// Rental is one booking of a machine by a user across a scheduled time
// window. Rental rows are the durable, authoritative state; in-memory
// caches are rebuilt from them on restart.
type Rental struct {
	ID             string            `json:"id" db:"id"`
	MachineID      string            `json:"machine_id" db:"machine_id"`
	UserID         string            `json:"user_id" db:"user_id"`
	ScheduledStart time.Time         `json:"scheduled_start" db:"scheduled_start"`
	ScheduledEnd   time.Time         `json:"scheduled_end" db:"scheduled_end"`
	Status         RentalStatus      `json:"status" db:"status"`
	IsStarted      bool              `json:"is_started" db:"is_started"`
	ActualStart    *time.Time        `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd      *time.Time        `json:"actual_end,omitempty" db:"actual_end"`
	Extensions     []RentalExtension `json:"extensions,omitempty" db:"extensions"`
	TotalExtended  int               `json:"total_extended_minutes" db:"total_extended_minutes"`
	ShutdownReason string            `json:"shutdown_reason,omitempty" db:"shutdown_reason"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// ActualDurationMinutes returns the elapsed minutes between actual start
// and actual end, or 0 when either is unset.
func (r *Rental) ActualDurationMinutes() int {
	if r.ActualStart == nil || r.ActualEnd == nil {
		return 0
	}
	return int(r.ActualEnd.Sub(*r.ActualStart) / time.Minute)
}
