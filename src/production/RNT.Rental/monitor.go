package rental

import (
	"context"
	"fmt"
	"sync"
	"time"

	alerts "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Alerts"
	config "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Config"
	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
	rntmodels "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Models"
	interfaces "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Repository/Interfaces"
)

// Monitor periodically scans for started sessions approaching their
// scheduled end and notifies the renter once per session.
type Monitor struct {
	rentals interfaces.RentalRepository
	users   interfaces.UserRepository
	sink    alerts.NotificationSink
	logger  *logger.Logger

	lead     time.Duration
	interval time.Duration

	mu       sync.Mutex
	notified map[string]bool

	now func() time.Time
}

func NewMonitor(
	cfg config.RentalConfig,
	rentals interfaces.RentalRepository,
	users interfaces.UserRepository,
	sink alerts.NotificationSink,
	log *logger.Logger,
) *Monitor {
	return &Monitor{
		rentals:  rentals,
		users:    users,
		sink:     sink,
		logger:   log.WithComponent("rental-monitor"),
		lead:     cfg.EndingSoonLead,
		interval: cfg.MonitorInterval,
		notified: make(map[string]bool),
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep performs one scan. Exposed for tests and manual triggering.
func (m *Monitor) Sweep(ctx context.Context) {
	now := m.now()
	ending, err := m.rentals.FindEndingSoon(ctx, now, m.lead)
	if err != nil {
		m.logger.ErrorWithError(err, "ending-soon scan failed")
		return
	}

	for i := range ending {
		m.notifyOnce(ctx, &ending[i], now)
	}

	m.prune(ending)
}

func (m *Monitor) notifyOnce(ctx context.Context, rental *rntmodels.Rental, now time.Time) {
	m.mu.Lock()
	seen := m.notified[rental.ID]
	m.mu.Unlock()
	if seen {
		return
	}

	remaining := rental.ScheduledEnd.Sub(now).Round(time.Minute)
	if remaining < time.Minute {
		remaining = time.Minute
	}

	req := alerts.DeliveryRequest{
		Title: "Rental ending soon",
		Body:  fmt.Sprintf("Your rental ends in about %d minute(s). Extend it or wrap up.", int(remaining.Minutes())),
		Data: map[string]string{
			"type":      "RENTAL_ENDING_SOON",
			"machineId": rental.MachineID,
			"rentalId":  rental.ID,
		},
	}

	renter, err := m.users.GetUser(ctx, rental.UserID)
	if err != nil || renter == nil {
		m.logger.Warn("renter lookup failed for ending-soon notice, rental " + rental.ID)
		return
	}
	req.RecipientRef = renter.PushToken
	if req.RecipientRef == "" {
		req.RecipientRef = renter.ID
	}

	if err := m.sink.Send(ctx, req); err != nil {
		m.logger.ErrorWithError(err, "ending-soon notice delivery failed for rental "+rental.ID)
		return
	}

	// Marked only after delivery, so a transient failure retries on the
	// next sweep.
	m.mu.Lock()
	m.notified[rental.ID] = true
	m.mu.Unlock()

	m.logger.WithField("rental_id", rental.ID).Info("ending-soon notice sent")
}

// prune drops dedupe entries for sessions no longer in the ending-soon
// window, so the map does not grow with history.
func (m *Monitor) prune(current []rntmodels.Rental) {
	live := make(map[string]bool, len(current))
	for _, rental := range current {
		live[rental.ID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.notified {
		if !live[id] {
			delete(m.notified, id)
		}
	}
}
