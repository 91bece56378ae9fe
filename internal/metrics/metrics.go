package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cart workflow metrics
	CartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezelectronics_cart_operations_total",
			Help: "Cart workflow operations by outcome",
		},
		[]string{"operation", "result"},
	)

	CheckoutTotalValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ezelectronics_checkout_total_value",
			Help:    "Monetary total of checked-out carts",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	// Review workflow metrics
	ReviewOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezelectronics_review_operations_total",
			Help: "Review workflow operations by outcome",
		},
		[]string{"operation", "result"},
	)

	// Catalog metrics
	ProductOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezelectronics_product_operations_total",
			Help: "Catalog operations by outcome",
		},
		[]string{"operation", "result"},
	)

	ProductStockGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ezelectronics_product_stock",
			Help: "Current stock level per product model",
		},
		[]string{"model"},
	)
)

// Observe records one operation outcome on the given counter vec.
func Observe(vec *prometheus.CounterVec, operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	vec.WithLabelValues(operation, result).Inc()
}
