package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "starlog_stream_messages_total",
	Help: "counter of live feed messages processed, by outcome",
}, []string{"outcome"})
