// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder is the metrics surface used by the services.
type Recorder interface {
	RecordRegistration(result string)
	RecordLogin(method, result string)
	RecordVerification(channel, result string)
	RecordShareCreated(reused bool)
	RecordShareRedeemed(result string)
	RecordSweep(kind string, deleted int64)
}

// Collector records metrics into a Prometheus registry.
type Collector struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	verifications *prometheus.CounterVec
	sharesCreated *prometheus.CounterVec
	sharesRedeem  *prometheus.CounterVec
	sweepDeleted  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_registrations_total",
			Help: "Password registrations by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_logins_total",
			Help: "Login attempts by method and result.",
		}, []string{"method", "result"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_verifications_total",
			Help: "Email verification attempts by channel and result.",
		}, []string{"channel", "result"}),
		sharesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_share_links_total",
			Help: "Share link requests, split by whether an existing token was returned.",
		}, []string{"reused"}),
		sharesRedeem: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_share_redemptions_total",
			Help: "Share token redemptions by result.",
		}, []string{"result"}),
		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photobooth_sweep_deleted_total",
			Help: "Rows removed by the expiry sweeper.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.verifications,
		c.sharesCreated,
		c.sharesRedeem,
		c.sweepDeleted,
	)

	return c
}

func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

func (c *Collector) RecordVerification(channel, result string) {
	c.verifications.WithLabelValues(channel, result).Inc()
}

func (c *Collector) RecordShareCreated(reused bool) {
	label := "false"
	if reused {
		label = "true"
	}
	c.sharesCreated.WithLabelValues(label).Inc()
}

func (c *Collector) RecordShareRedeemed(result string) {
	c.sharesRedeem.WithLabelValues(result).Inc()
}

func (c *Collector) RecordSweep(kind string, deleted int64) {
	c.sweepDeleted.WithLabelValues(kind).Add(float64(deleted))
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordRegistration(string)         {}
func (Nop) RecordLogin(string, string)        {}
func (Nop) RecordVerification(string, string) {}
func (Nop) RecordShareCreated(bool)           {}
func (Nop) RecordShareRedeemed(string)        {}
func (Nop) RecordSweep(string, int64)         {}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Handler returns the HTTP handler serving the scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
