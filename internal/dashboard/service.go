// Package dashboard computes read-only projections over a partner's transfer
// history: the 24h summary snapshot, hourly volume series, and top error
// categories. A background ticker pushes fresh summaries onto live streams.
package dashboard

import (
	"context"
	"math"
	"sort"
	"time"

	"tradegate/internal/events"
	"tradegate/internal/files"
	id "tradegate/pkg/domain"
)

// Large file threshold for the summary counter.
const largeFileBytes = 10 * 1024 * 1024

// TransferReader is the slice of the files store the projections need.
type TransferReader interface {
	ListSince(ctx context.Context, partnerID id.PartnerID, criteria files.SearchCriteria) ([]*files.TransferEvent, error)
}

// TimeSeriesPoint is one hourly bucket of transfer counts.
type TimeSeriesPoint struct {
	Timestamp     time.Time
	InboundCount  int
	OutboundCount int
}

// ErrorCategory is one error code with its occurrence count.
type ErrorCategory struct {
	Category string
	Count    int
}

type Service struct {
	transfers TransferReader
	now       func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(transfers TransferReader, opts ...Option) *Service {
	s := &Service{transfers: transfers, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary aggregates the partner's last 24 hours of transfers.
func (s *Service) Summary(ctx context.Context, partnerID id.PartnerID) (events.MetricsSummary, error) {
	since := s.now().UTC().Add(-24 * time.Hour)
	window, err := s.transfers.ListSince(ctx, partnerID, files.SearchCriteria{DateFrom: since})
	if err != nil {
		return events.MetricsSummary{}, err
	}

	var summary events.MetricsSummary
	var successful, processed int
	var totalLatencyMs float64
	for _, event := range window {
		switch event.Direction {
		case files.DirectionInbound:
			summary.InboundFiles24h++
		case files.DirectionOutbound:
			summary.OutboundFiles24h++
		}
		switch event.Status {
		case files.StatusSuccess:
			successful++
		case files.StatusFailed:
			summary.OpenErrors++
		}
		if latency := event.ProcessingLatencyMs(); latency != nil {
			processed++
			totalLatencyMs += *latency
		}
		summary.TotalBytes24h += event.SizeBytes
		if event.SizeBytes > largeFileBytes {
			summary.LargeFileCount24h++
		}
	}

	if total := len(window); total > 0 {
		summary.SuccessRate = round2(float64(successful) / float64(total) * 100)
		summary.AvgFileSizeBytes = round2(float64(summary.TotalBytes24h) / float64(total))
	}
	if processed > 0 {
		summary.AvgProcessingMs = round2(totalLatencyMs / float64(processed))
	}
	return summary, nil
}

// TimeSeries buckets transfers received in [from, to] into hourly counts,
// oldest bucket first. Empty hours produce no point.
func (s *Service) TimeSeries(ctx context.Context, partnerID id.PartnerID, from, to time.Time) ([]TimeSeriesPoint, error) {
	window, err := s.transfers.ListSince(ctx, partnerID, files.SearchCriteria{DateFrom: from, DateTo: to})
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*TimeSeriesPoint)
	for _, event := range window {
		hour := event.ReceivedAt.UTC().Truncate(time.Hour)
		point := buckets[hour]
		if point == nil {
			point = &TimeSeriesPoint{Timestamp: hour}
			buckets[hour] = point
		}
		switch event.Direction {
		case files.DirectionInbound:
			point.InboundCount++
		case files.DirectionOutbound:
			point.OutboundCount++
		}
	}

	points := make([]TimeSeriesPoint, 0, len(buckets))
	for _, point := range buckets {
		points = append(points, *point)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// TopErrors ranks failed transfers in [from, to] by error code, most frequent
// first, limited to top entries. Failures without a code are skipped.
func (s *Service) TopErrors(ctx context.Context, partnerID id.PartnerID, from, to time.Time, top int) ([]ErrorCategory, error) {
	window, err := s.transfers.ListSince(ctx, partnerID, files.SearchCriteria{
		Status:   files.StatusFailed,
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, event := range window {
		if event.ErrorCode == "" {
			continue
		}
		counts[event.ErrorCode]++
	}

	categories := make([]ErrorCategory, 0, len(counts))
	for code, count := range counts {
		categories = append(categories, ErrorCategory{Category: code, Count: count})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Count != categories[j].Count {
			return categories[i].Count > categories[j].Count
		}
		return categories[i].Category < categories[j].Category
	})
	if top > 0 && len(categories) > top {
		categories = categories[:top]
	}
	return categories, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
