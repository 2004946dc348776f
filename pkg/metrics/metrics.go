// Package metrics provides the Prometheus registry reference for the PokeAPI
// client. Metrics are defined in their respective packages (client, batch,
// store) and registered via promauto.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the PokeAPI client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything registered on Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, for node_exporter's textfile collector. Batch runs are short-lived,
// so this replaces a scrape endpoint.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - pokeapi_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//     ("network_error" when no response arrived)
//   - pokeapi_request_duration_seconds{endpoint} (Histogram): request duration by endpoint
//   - pokeapi_errors_total{kind} (Counter): fetch errors by kind (not_found, transport, decode)
//
// Batch Metrics (pkg/batch):
//   - pokeapi_batches_total{mode, result} (Counter): batch fetches by mode and result
//   - pokeapi_batch_duration_seconds{mode} (Histogram): batch duration by mode
//   - pokeapi_batch_records_total{mode} (Counter): records returned by successful batches
//
// Export Metrics (pkg/store):
//   - pokeapi_store_writes_total{result} (Counter): records written to Redis
//
// Example Prometheus Queries:
//
//   # Not-found rate
//   rate(pokeapi_errors_total{kind="not_found"}[5m]) / rate(pokeapi_requests_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(pokeapi_request_duration_seconds_bucket[5m]))
