package kafka

import (
	// External Packages
	"github.com/twmb/franz-go/plugin/kprom"
)

const (
	EventsMetricsNamespace   = "bbps_events"
	WebhooksMetricsNamespace = "bbps_webhooks"
)

// NewEventMetrics returns the hooks for the payment event producer.
// A kprom.Metrics registers its collectors on the first client it is
// attached to, so every client gets its own instance.
func NewEventMetrics() *kprom.Metrics {
	return kprom.NewMetrics(EventsMetricsNamespace)
}

// NewWebhookMetrics returns the hooks for the webhook consumer.
func NewWebhookMetrics() *kprom.Metrics {
	return kprom.NewMetrics(WebhooksMetricsNamespace)
}
