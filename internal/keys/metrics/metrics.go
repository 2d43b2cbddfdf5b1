package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	KeysUploaded       prometheus.Counter
	KeysGenerated      prometheus.Counter
	KeysRevoked        prometheus.Counter
	KeysPromoted       prometheus.Counter
	FailoverPromotions prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		KeysUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_keys_uploaded_total",
			Help: "Total number of public keys uploaded",
		}),
		KeysGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_keys_generated_total",
			Help: "Total number of key pairs generated",
		}),
		KeysRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_keys_revoked_total",
			Help: "Total number of keys revoked",
		}),
		KeysPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_keys_promoted_total",
			Help: "Total number of explicit primary promotions",
		}),
		FailoverPromotions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradegate_key_failover_promotions_total",
			Help: "Automatic promotions triggered by revoking a primary key",
		}),
	}
}

func (m *Metrics) IncrementUploaded() {
	m.KeysUploaded.Inc()
}

func (m *Metrics) IncrementGenerated() {
	m.KeysGenerated.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.KeysRevoked.Inc()
}

func (m *Metrics) IncrementPromoted() {
	m.KeysPromoted.Inc()
}

func (m *Metrics) IncrementFailover() {
	m.FailoverPromotions.Inc()
}
