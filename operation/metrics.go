package operation

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scrapedesk_operation_transitions_total",
	Help: "Scrape operation transition attempts, by transition and whether it was applied.",
}, []string{"transition", "applied"})

func observe(transition string, applied bool) {
	transitionsTotal.WithLabelValues(transition, strconv.FormatBool(applied)).Inc()
}
