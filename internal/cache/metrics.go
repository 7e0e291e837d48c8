package cache

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "railcore",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Cache reads by resource and result (hit, miss, error).",
	}, []string{"resource", "result"})

	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "railcore",
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Cache keys deleted after a mutation, by resource.",
	}, []string{"resource"})
)

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

// resource is the key prefix up to the first colon ("stations", "train", ...)
func resource(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
