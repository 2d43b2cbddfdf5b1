package files

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransfersRecorded *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		TransfersRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_file_transfers_recorded_total",
			Help: "Total number of file transfer observations recorded",
		}, []string{"direction"}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradegate_file_status_transitions_total",
			Help: "Total number of file status transitions",
		}, []string{"new_status"}),
	}
}

func (m *Metrics) IncrementRecorded(direction Direction) {
	m.TransfersRecorded.WithLabelValues(string(direction)).Inc()
}

func (m *Metrics) IncrementTransition(status Status) {
	m.StatusTransitions.WithLabelValues(string(status)).Inc()
}
