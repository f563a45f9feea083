// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes runtime and canonicalization counters to
// prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// Collector is safe to use as a nil pointer, in which case nothing is
// recorded.
type Collector struct {
	jobsRegistered  prometheus.Counter
	jobsMatched     prometheus.Counter
	jobsFinalized   prometheus.Counter
	reports         *prometheus.CounterVec
	payouts         prometheus.Counter
	fees            prometheus.Counter
	messages        *prometheus.CounterVec
	skippedSigs     prometheus.Counter
	processorErrors prometheus.Counter
	extrinsics      *prometheus.CounterVec

	canonicalizedBlocks prometheus.Counter
	canonicalizedNodes  prometheus.Counter
	prunedNodes         prometheus.Counter
	bestCanonicalized   prometheus.Gauge
}

// New registers every metric under [namespace] with [registerer].
func New(namespace string, registerer prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		jobsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_registered_total",
			Help:      "Number of job registrations stored",
		}),
		jobsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_matched_total",
			Help:      "Number of jobs matched to processors",
		}),
		jobsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finalized_total",
			Help:      "Number of jobs finalized or deregistered",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Number of execution reports by result",
		}, []string{"result"}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_total",
			Help:      "Sum of rewards paid to processors",
		}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_total",
			Help:      "Sum of fees paid to the fee manager",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hyperdrive_messages_total",
			Help:      "Number of hyperdrive messages by lifecycle step",
		}, []string{"step"}),
		skippedSigs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hyperdrive_skipped_signatures_total",
			Help:      "Number of signatures skipped for unknown or inactive oracles",
		}),
		processorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hyperdrive_processor_errors_total",
			Help:      "Number of received messages whose processing failed",
		}),
		extrinsics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extrinsics_total",
			Help:      "Number of executed extrinsics by outcome",
		}, []string{"outcome"}),
		canonicalizedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mmr_canonicalized_blocks_total",
			Help:      "Number of finalized blocks whose mmr nodes were canonicalized",
		}),
		canonicalizedNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mmr_canonicalized_nodes_total",
			Help:      "Number of mmr nodes moved to canonical keys",
		}),
		prunedNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mmr_pruned_nodes_total",
			Help:      "Number of stale fork nodes deleted",
		}),
		bestCanonicalized: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mmr_best_canonicalized",
			Help:      "Height of the last canonicalized block",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(c.jobsRegistered),
		registerer.Register(c.jobsMatched),
		registerer.Register(c.jobsFinalized),
		registerer.Register(c.reports),
		registerer.Register(c.payouts),
		registerer.Register(c.fees),
		registerer.Register(c.messages),
		registerer.Register(c.skippedSigs),
		registerer.Register(c.processorErrors),
		registerer.Register(c.extrinsics),
		registerer.Register(c.canonicalizedBlocks),
		registerer.Register(c.canonicalizedNodes),
		registerer.Register(c.prunedNodes),
		registerer.Register(c.bestCanonicalized),
	)
	return c, errs.Err
}

func (c *Collector) JobRegistered() {
	if c != nil {
		c.jobsRegistered.Inc()
	}
}

func (c *Collector) JobMatched() {
	if c != nil {
		c.jobsMatched.Inc()
	}
}

func (c *Collector) JobFinalized() {
	if c != nil {
		c.jobsFinalized.Inc()
	}
}

// Report counts one report and the amounts it moved.
func (c *Collector) Report(success bool, payout, fee uint64) {
	if c == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	c.reports.WithLabelValues(result).Inc()
	c.payouts.Add(float64(payout))
	c.fees.Add(float64(fee))
}

// Message counts a hyperdrive lifecycle step: sent, confirmed, received,
// removed or cleaned.
func (c *Collector) Message(step string, n int) {
	if c != nil {
		c.messages.WithLabelValues(step).Add(float64(n))
	}
}

func (c *Collector) SignatureSkipped() {
	if c != nil {
		c.skippedSigs.Inc()
	}
}

func (c *Collector) ProcessorError() {
	if c != nil {
		c.processorErrors.Inc()
	}
}

// Extrinsic counts an executed extrinsic by outcome.
func (c *Collector) Extrinsic(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.extrinsics.WithLabelValues("success").Inc()
	} else {
		c.extrinsics.WithLabelValues("failure").Inc()
	}
}

// Canonicalized records the gadget's progress through block [height].
func (c *Collector) Canonicalized(height uint64, moved, pruned int) {
	if c == nil {
		return
	}
	c.canonicalizedBlocks.Inc()
	c.canonicalizedNodes.Add(float64(moved))
	c.prunedNodes.Add(float64(pruned))
	c.bestCanonicalized.Set(float64(height))
}
