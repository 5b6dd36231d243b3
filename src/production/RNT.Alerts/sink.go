package alerts

import (
	"context"

	logger "gitlab.com/labtek-ppm/rnt.coordinator/src/production/RNT.Logger"
)

// DeliveryRequest is what the coordinator hands to the external
// push-notification layer. Actual device push / socket fan-out happens
// outside this process.
type DeliveryRequest struct {
	Title        string            `json:"title"`
	Body         string            `json:"body"`
	RecipientRef string            `json:"recipient_ref"`
	Data         map[string]string `json:"data,omitempty"`
}

// NotificationSink delivers alert requests. Delivery is best-effort;
// failures are logged by the caller and never affect session state.
type NotificationSink interface {
	Send(ctx context.Context, req DeliveryRequest) error
}

// LogSink records delivery requests in the log. Used when no external
// push gateway is configured, and in tests.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log.WithComponent("notification-sink")}
}

func (s *LogSink) Send(_ context.Context, req DeliveryRequest) error {
	s.logger.WithField("recipient", req.RecipientRef).
		WithField("title", req.Title).
		Info("notification delivery requested")
	return nil
}
