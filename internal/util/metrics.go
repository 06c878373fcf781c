package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fetches_total",
		Help: "Total number of catalog fetches by source",
	}, []string{"source"})

	SearchesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "searches_issued_total",
		Help: "Total number of search calls issued upstream",
	})

	SearchesSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "searches_superseded_total",
		Help: "Total number of pending searches cancelled by a newer query",
	})

	CartLinesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_lines_dropped_total",
		Help: "Total number of cart lines dropped for referencing unknown products",
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations by operation",
	}, []string{"op"})

	CartMutationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_failed_total",
		Help: "Total number of failed cart mutations",
	}, []string{"reason"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed successfully",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of order placement",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
