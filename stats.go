/*
 Copyright (c) Facebook, Inc. and its affiliates.

 This source code is licensed under the MIT license found in the
 LICENSE file in the root directory of this source tree.
*/

package goftpd

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	serveAccepted = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goftpd",
		Name:      "serve_accepted",
		Help:      "number of accepted control connections currently being processed",
	})
	serveAcceptedError = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goftpd",
		Name:      "serve_accepted_error",
		Help:      "number of errors accepting control connections",
	})
	handlersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "goftpd",
		Name:      "handle_handlers",
		Help:      "number of per-connection handler goroutines currently running",
	})

	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goftpd",
		Name:      "login_attempts_total",
		Help:      "total USER/PASS login attempts, labeled by outcome",
	}, []string{"outcome"})

	loginTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goftpd",
		Name:      "login_timeouts_total",
		Help:      "number of control connections closed for exceeding TimeoutLogin",
	})

	admissionRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "goftpd",
		Name:      "admission_rejected_total",
		Help:      "connections rejected at admission, labeled by reason",
	}, []string{"reason"})

	installFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "goftpd",
		Name:      "install_failures_total",
		Help:      "number of sessions that failed privilege installation after a successful verdict",
	})

	// durations
	sessionDurations = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Namespace:  "goftpd",
			Name:       "sessions_duration_milliseconds",
			Help:       "time a session remains established, in milliseconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
	)

	connectionDuration = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Namespace:  "goftpd",
			Name:       "serve_connection_duration_milliseconds",
			Help:       "total lifetime of a control connection, including overhead, in milliseconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
	)
)

func init() {
	prometheus.MustRegister(serveAccepted)
	prometheus.MustRegister(serveAcceptedError)
	prometheus.MustRegister(handlersActive)
	prometheus.MustRegister(loginAttempts)
	prometheus.MustRegister(loginTimeouts)
	prometheus.MustRegister(admissionRejected)
	prometheus.MustRegister(installFailures)
	prometheus.MustRegister(sessionsActive)
	prometheus.MustRegister(sessionDurations)
	prometheus.MustRegister(connectionDuration)
}
