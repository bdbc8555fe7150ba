package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "softwarnews_votes_total",
		Help: "Votes applied, by target kind, direction and ledger transition.",
	}, []string{"kind", "direction", "transition"})

	voteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "softwarnews_vote_errors_total",
		Help: "Rejected or failed votes, by error code.",
	}, []string{"code"})

	curationRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "softwarnews_curation_request_duration_seconds",
		Help:    "Latency of outbound curation source requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "status"})
)
