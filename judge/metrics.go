package judge

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "judged"

var (
	// 1ms -> 10s
	timeBuckets = []float64{
		0.001, 0.002, 0.005, 0.008, 0.010, 0.025, 0.050, 0.075, 0.1, 0.2,
		0.4, 0.6, 0.8, 1.0, 1.5, 2, 5, 10,
	}

	executionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "executions_total",
		Help:      "Number of judged executions by overall status",
	}, []string{"status"})

	executionErrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "execution_errors_total",
		Help:      "Number of error verdicts by diagnostic category",
	}, []string{"category"})

	executionTimeHist = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "execution_time_seconds",
		Help:      "Histogram of sandbox wall time by overall status",
		Buckets:   timeBuckets,
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(executionCount, executionErrorCount, executionTimeHist)
}
