// Package metrics provides Prometheus metrics for the kestrafs client.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrafs_api_requests_total",
			Help: "Total number of requests sent to the Kestra API",
		},
		[]string{"endpoint", "status"},
	)

	authRecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrafs_auth_recoveries_total",
			Help: "Credential recovery attempts after a 401 response",
		},
		[]string{"result"},
	)

	fsOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrafs_fs_operations_total",
			Help: "Total virtual filesystem operations",
		},
		[]string{"op", "result"},
	)

	fsBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrafs_fs_bytes_total",
			Help: "Bytes read from or written to the remote namespace",
		},
		[]string{"direction"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest records a request to the remote API. A status of 0 means
// the transport failed before a response was received.
func RecordAPIRequest(endpoint string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(endpoint, label).Inc()
}

// RecordAuthRecovery records the outcome of a credential recovery cycle.
func RecordAuthRecovery(result string) {
	authRecoveriesTotal.WithLabelValues(result).Inc()
}

// RecordFSOperation records a filesystem verb and whether it succeeded.
func RecordFSOperation(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	fsOperationsTotal.WithLabelValues(op, result).Inc()
}

// RecordBytesRead records bytes fetched from the server.
func RecordBytesRead(n int) {
	fsBytesTotal.WithLabelValues("read").Add(float64(n))
}

// RecordBytesWritten records bytes sent to the server.
func RecordBytesWritten(n int) {
	fsBytesTotal.WithLabelValues("write").Add(float64(n))
}
