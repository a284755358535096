// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"strconv"

	"github.com/luxfi/metric"
)

const (
	ballotLabel    = "ballot"
	outcomeLabel   = "outcome"
	deliveredLabel = "delivered"
)

// Ballot labels.
const (
	TraitBallot    = "trait"
	ProposalBallot = "proposal"
	VetoBallot     = "veto"
)

var _ Metrics = (*metricsImpl)(nil)

type Metrics interface {
	IncTicketsCreated()
	IncProposals()
	// MarkVote records a vote cast on ballot, one of the ballot labels.
	MarkVote(ballot string)
	// MarkExecution records an executed ticket with its outcome label.
	MarkExecution(outcome string)
	// MarkFeeTransfer records a single settlement transfer attempt.
	MarkFeeTransfer(delivered bool)
}

type metricsImpl struct {
	ticketsCreated metric.Counter
	proposals      metric.Counter
	votes          metric.CounterVec
	executions     metric.CounterVec
	feeTransfers   metric.CounterVec
}

func (m *metricsImpl) IncTicketsCreated() {
	m.ticketsCreated.Inc()
}

func (m *metricsImpl) IncProposals() {
	m.proposals.Inc()
}

func (m *metricsImpl) MarkVote(ballot string) {
	m.votes.With(metric.Labels{
		ballotLabel: ballot,
	}).Inc()
}

func (m *metricsImpl) MarkExecution(outcome string) {
	m.executions.With(metric.Labels{
		outcomeLabel: outcome,
	}).Inc()
}

func (m *metricsImpl) MarkFeeTransfer(delivered bool) {
	m.feeTransfers.With(metric.Labels{
		deliveredLabel: strconv.FormatBool(delivered),
	}).Inc()
}

func New(namespace string, registry metric.Registry) (Metrics, error) {
	metricsInstance := metric.NewWithRegistry(namespace, registry)

	// Metrics are registered with registry as they are created.
	return &metricsImpl{
		ticketsCreated: metricsInstance.NewCounter(
			"tickets_created",
			"Number of breeding tickets created",
		),
		proposals: metricsInstance.NewCounter(
			"proposals",
			"Number of components proposed",
		),
		votes: metricsInstance.NewCounterVec(
			"votes",
			"Number of votes cast, by ballot",
			[]string{ballotLabel},
		),
		executions: metricsInstance.NewCounterVec(
			"executions",
			"Number of executed tickets, by outcome",
			[]string{outcomeLabel},
		),
		feeTransfers: metricsInstance.NewCounterVec(
			"fee_transfers",
			"Number of breeding fee transfers attempted, by delivery",
			[]string{deliveredLabel},
		),
	}, nil
}

// NewNoop returns metrics backed by a private registry.
func NewNoop() Metrics {
	m, _ := New("", metric.NewRegistry())
	return m
}
