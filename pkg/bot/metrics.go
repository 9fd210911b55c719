package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricSessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bot_session_outcomes_total",
	Help: "Meeting session outcomes by platform",
}, []string{"platform", "outcome"})

const (
	outcomeJoined  = "joined"
	outcomeFailed  = "failed"
	outcomeLeft    = "left"
	outcomeCrashed = "crashed"
)
