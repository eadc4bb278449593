package metrics

import (
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"

	"github.com/alphabill-org/zkbridge/internal/logger"
)

var (
	log = logger.CreateForPackage()

	once     sync.Once
	registry = metrics.NewRegistry()
)

type Counter struct {
	metrics.Counter
}

// Enable turns on metrics collection. Counters registered before the call
// stay no-op, so it must be called before components are created.
func Enable() {
	once.Do(func() {
		log.Debug("Initialising metrics")
		metrics.Enabled = true
	})
}

func Enabled() bool {
	return metrics.Enabled
}

// GetOrRegisterCounter returns the named counter, a no-op counter when
// metrics are not enabled.
func GetOrRegisterCounter(name string) *Counter {
	if !metrics.Enabled {
		return &Counter{metrics.NilCounter{}}
	}
	log.Trace("Creating new counter with name %v", name)
	return &Counter{metrics.GetOrRegisterCounter(name, registry)}
}

func PrometheusHandler() http.Handler {
	return prometheus.Handler(registry)
}
