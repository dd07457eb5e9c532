package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	registered = map[string]bool{}
)

// register adds collectors to the default registry, tolerating repeats so
// package init order never matters.
func register(cs ...prometheus.Collector) {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range cs {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
