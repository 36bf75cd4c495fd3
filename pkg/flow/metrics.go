// SPDX-FileCopyrightText: Copyright 2025 Guildgate Authors
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Callback result labels.
const (
	resultAdmitted      = "admitted"
	resultDenied        = "denied"
	resultRestart       = "restart"
	resultExchangeError = "exchange_error"
	resultError         = "error"
)

var (
	loginsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guildgate_logins_started_total",
		Help: "Number of login attempts started via /login.",
	})

	callbackResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guildgate_callback_results_total",
		Help: "Number of completed /callback requests by result.",
	}, []string{"result"})
)
