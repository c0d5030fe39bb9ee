// Package metrics provides Prometheus metrics for the swalang sync core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	gatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swalang_gateway_call_duration_seconds",
			Help:    "Remote gateway call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	gatewayCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swalang_gateway_calls_total",
			Help: "Total remote gateway calls",
		},
		[]string{"backend", "op", "status"},
	)

	gatewayOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swalang_gateway_online",
			Help: "1 if the remote gateway was reachable on the last call",
		},
	)

	// Node cache metrics
	cacheLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swalang_cache_loads_total",
			Help: "Node cache load requests by outcome",
		},
		[]string{"result"},
	)

	cachedParentKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swalang_cache_parent_keys",
			Help: "Number of parent keys with a cached sequence",
		},
	)

	cachedNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swalang_cache_nodes",
			Help: "Number of nodes across all cached sequences",
		},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swalang_mutations_total",
			Help: "Create/rename/delete operations by outcome",
		},
		[]string{"op", "status"},
	)

	staleRenamesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swalang_stale_renames_total",
			Help: "Successful renames whose node was not found in the cache",
		},
	)

	// Vote metrics
	votesCastTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swalang_votes_cast_total",
			Help: "Votes applied locally by effective value",
		},
		[]string{"vote"},
	)

	voteDivergenceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swalang_vote_divergence_total",
			Help: "Remote vote casts that failed after the optimistic update was applied",
		},
	)

	// Store metrics
	storeSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swalang_store_subscribers",
			Help: "Number of active state subscribers",
		},
		[]string{"store"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordGatewayCall records a remote gateway call.
func RecordGatewayCall(backend, op string, duration time.Duration, err error) {
	gatewayCallDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	gatewayCallsTotal.WithLabelValues(backend, op, status).Inc()
}

// SetGatewayOnline records the gateway's reachability.
func SetGatewayOnline(online bool) {
	if online {
		gatewayOnline.Set(1)
	} else {
		gatewayOnline.Set(0)
	}
}

// RecordCacheLoad records a load request: "started", "skipped", "success" or "error".
func RecordCacheLoad(result string) {
	cacheLoadsTotal.WithLabelValues(result).Inc()
}

// SetCacheSize sets the cached key and node counts.
func SetCacheSize(keys, nodes int) {
	cachedParentKeys.Set(float64(keys))
	cachedNodes.Set(float64(nodes))
}

// RecordMutation records a create/rename/delete.
func RecordMutation(op string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	mutationsTotal.WithLabelValues(op, status).Inc()
}

// RecordStaleRename records a rename that missed the cache.
func RecordStaleRename() {
	staleRenamesTotal.Inc()
}

// RecordVote records an optimistic vote transition.
func RecordVote(effective string) {
	votesCastTotal.WithLabelValues(effective).Inc()
}

// RecordVoteDivergence records a failed remote vote cast.
func RecordVoteDivergence() {
	voteDivergenceTotal.Inc()
}

// SetStoreSubscribers sets the subscriber count for a store.
func SetStoreSubscribers(store string, count int) {
	storeSubscribers.WithLabelValues(store).Set(float64(count))
}
