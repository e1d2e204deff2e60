package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sales_processed_total",
		Help: "Sales processed, by result",
	}, []string{"result"})

	SaleProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sale_process_duration_seconds",
		Help:    "Latency of sale processing including retries",
		Buckets: prometheus.DefBuckets,
	})

	SalesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_sales_cancelled_total",
		Help: "Sales cancelled with a compensating stock reversal",
	})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_stock_movements_total",
		Help: "Inventory movements written, by type",
	}, []string{"type"})

	PromotionRedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_promotion_redemptions_total",
		Help: "Promotion usages committed with a sale",
	})

	TxnNumberRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_txn_number_retries_total",
		Help: "Sale attempts retried, by reason",
	}, []string{"reason"})

	ReportCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_report_cache_total",
		Help: "Report cache lookups, by outcome",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "route", "status"})
)
