package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPRequests counts served requests by route template and status
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finmate_http_requests_total",
		Help: "Total number of HTTP requests served",
	},
	[]string{"method", "route", "status"},
)

// HTTPLatency records request handling time
var HTTPLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "finmate_http_request_duration_seconds",
		Help:    "Latency in seconds of HTTP request handling",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// ProductSyncRuns counts product sync runs by kind and result (success/failure)
var ProductSyncRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finmate_product_sync_runs_total",
		Help: "Total number of product sync runs",
	},
	[]string{"kind", "result"},
)

// ProductSyncItems counts upserted rows by kind and entity (product/option)
var ProductSyncItems = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finmate_product_sync_items_total",
		Help: "Total number of rows upserted by product sync",
	},
	[]string{"kind", "entity"},
)

// UpstreamLatency records third-party call latency
var UpstreamLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "finmate_upstream_request_duration_seconds",
		Help:    "Latency in seconds of calls to third-party APIs",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"upstream", "outcome"},
)

// AIRecommendations counts LLM recommendation attempts by model and result
var AIRecommendations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finmate_ai_recommendations_total",
		Help: "Total number of LLM recommendation attempts",
	},
	[]string{"model", "result"},
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finmate_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finmate_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finmate_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency)
	prometheus.MustRegister(ProductSyncRuns, ProductSyncItems, UpstreamLatency, AIRecommendations)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}
