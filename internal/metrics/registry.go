// Package metrics counts how often tweets are published, discarded and
// queried. Counts are kept in process and exposed in the Prometheus text
// format; they can also be forwarded to Redis so several instances share
// totals.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Registry is an in-process set of named counters. It is safe for concurrent use.
type Registry struct {
	namespace string

	mu     sync.Mutex
	counts map[string]uint64
}

// NewRegistry returns an empty registry. Exposed metric names are prefixed
// with namespace when it is not empty.
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace: namespace,
		counts:    make(map[string]uint64),
	}
}

// Increment adds one to the named counter. It never fails.
func (r *Registry) Increment(_ context.Context, name string) error {
	r.mu.Lock()
	r.counts[name]++
	r.mu.Unlock()
	return nil
}

// Value returns the current count of name.
func (r *Registry) Value(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// Snapshot copies every counter.
func (r *Registry) Snapshot() map[string]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]uint64, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// MetricName turns a counter name such as "published-tweets" into
// "<namespace>_published_tweets_total".
func (r *Registry) MetricName(name string) string {
	var sb strings.Builder
	if r.namespace != "" {
		sb.WriteString(sanitize(r.namespace))
		sb.WriteByte('_')
	}
	sb.WriteString(sanitize(name))
	sb.WriteString("_total")
	return sb.String()
}

func sanitize(s string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == ':':
			return c
		default:
			return '_'
		}
	}, s)
}

// Gather returns one counter family per name, sorted by metric name.
func (r *Registry) Gather() []*dto.MetricFamily {
	snap := r.Snapshot()

	families := make([]*dto.MetricFamily, 0, len(snap))
	for name, count := range snap {
		metricName := r.MetricName(name)
		help := "Number of " + strings.ReplaceAll(name, "-", " ") + "."
		value := float64(count)

		families = append(families, &dto.MetricFamily{
			Name: &metricName,
			Help: &help,
			Type: dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{
				{Counter: &dto.Counter{Value: &value}},
			},
		})
	}

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	return families
}

// ServeHTTP writes the counters in the Prometheus text exposition format.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range r.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.ErrorContext(req.Context(), "failed to encode metrics",
				"metric", mf.GetName(),
				"error", err.Error(),
			)
			return
		}
	}
}
