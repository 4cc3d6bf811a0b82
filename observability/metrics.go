package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RPCRequests counts JSON-RPC requests segmented by method.
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daotoken",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "Total JSON-RPC requests segmented by method.",
	}, []string{"method"})

	// MintSettlements counts emission settlements segmented by organization.
	MintSettlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "daotoken",
		Subsystem: "token",
		Name:      "mint_settlements_total",
		Help:      "Total emission settlements segmented by organization.",
	}, []string{"org"})
)

// MetricsHandler exposes the prometheus registry over HTTP.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
