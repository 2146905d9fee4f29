package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the live metrics endpoint.
type Summary struct {
	API     apiSummary  `json:"api"`
	Cache   cacheInfo   `json:"cache"`
	Syncs   syncInfo    `json:"syncs"`
	Session sessionInfo `json:"session"`
	Client  clientInfo  `json:"client"`
}

type apiSummary struct {
	TotalRequests   float64 `json:"totalRequests"`
	ErrorRate       float64 `json:"errorRate"`
	TransportErrors float64 `json:"transportErrors"`
	P50Latency      float64 `json:"p50Latency"`
	P95Latency      float64 `json:"p95Latency"`
}

type cacheInfo struct {
	TeamHits   float64 `json:"teamHits"`
	TeamMisses float64 `json:"teamMisses"`
}

type syncInfo struct {
	Total  float64 `json:"total"`
	Errors float64 `json:"errors"`
}

type sessionInfo struct {
	ForcedLogouts float64 `json:"forcedLogouts"`
}

type clientInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler returns an http.HandlerFunc serving a live JSON summary of the
// registry.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleLive(w)
	}
}

func (m *Metrics) handleLive(w http.ResponseWriter) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	start := gaugeValue(fam["taskdeck_client_start_time_seconds"])
	summary := Summary{
		API: apiSummary{
			TotalRequests:   sumCounter(fam["taskdeck_api_requests_total"]),
			ErrorRate:       computeErrorRate(fam["taskdeck_api_requests_total"]),
			TransportErrors: sumCounter(fam["taskdeck_api_transport_errors_total"]),
			P50Latency:      histogramPercentile(fam["taskdeck_api_request_duration_seconds"], 0.50),
			P95Latency:      histogramPercentile(fam["taskdeck_api_request_duration_seconds"], 0.95),
		},
		Cache: cacheInfo{
			TeamHits:   counterWithLabel(fam["taskdeck_team_cache_total"], "outcome", "hit"),
			TeamMisses: counterWithLabel(fam["taskdeck_team_cache_total"], "outcome", "miss"),
		},
		Syncs: syncInfo{
			Total:  sumCounter(fam["taskdeck_store_syncs_total"]),
			Errors: counterWithLabel(fam["taskdeck_store_syncs_total"], "outcome", "error"),
		},
		Session: sessionInfo{
			ForcedLogouts: sumCounter(fam["taskdeck_forced_logouts_total"]),
		},
		Client: clientInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

func counterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName && lp.GetValue() == labelValue {
				if m.GetCounter() != nil {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func computeErrorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			// Linear interpolation within this bucket.
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	// Fall back to the last finite bucket upper bound.
	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}
