package recovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recoveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_recovery_attempts_total",
		Help: "Total number of recovery attempts by error category",
	}, []string{"category"})

	recoveryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menu_recovery_exhausted_total",
		Help: "Total number of recoverable errors rejected because the attempt budget was used up",
	}, []string{"category"})
)
