// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"time"

	"github.com/luxfi/ids"
)

const (
	// Proposal is the window in which components may be proposed.
	Proposal Phase = iota
	// Voting is the window in which every ballot accepts votes.
	Voting
	// Execution means voting closed and the ticket awaits execution.
	Execution
	// Completed is terminal: the ticket was executed or vetoed.
	Completed
)

const (
	Pending Outcome = iota
	Bred
	Vetoed
)

// Phase is derived from a ticket's timestamps; it is never stored.
type Phase uint8

func (p Phase) String() string {
	switch p {
	case Proposal:
		return "proposal"
	case Voting:
		return "voting"
	case Execution:
		return "execution"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome distinguishes how an executed ticket ended.
type Outcome uint8

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Bred:
		return "bred"
	case Vetoed:
		return "vetoed"
	default:
		return "unknown"
	}
}

// Ticket is one breeding negotiation between two parents.
type Ticket struct {
	ID          uint64      `serialize:"true" json:"id"`
	ParentA     ids.ShortID `serialize:"true" json:"parentA"`
	ParentB     ids.ShortID `serialize:"true" json:"parentB"`
	Description string      `serialize:"true" json:"description"`
	MetadataRef string      `serialize:"true" json:"metadataRef"`
	Creator     ids.ShortID `serialize:"true" json:"creator"`
	// CreatedAt is in unix seconds.
	CreatedAt uint64 `serialize:"true" json:"createdAt"`
	// Executed only ever moves from false to true.
	Executed  bool        `serialize:"true" json:"executed"`
	Outcome   Outcome     `serialize:"true" json:"outcome"`
	Offspring ids.ShortID `serialize:"true" json:"offspring"`
}

// HasParent reports whether addr is one of the ticket's two parents.
func (t *Ticket) HasParent(addr ids.ShortID) bool {
	return t.ParentA == addr || t.ParentB == addr
}

// PhaseAt derives the phase at now from the creation time and the two
// window lengths.
func (t *Ticket) PhaseAt(now time.Time, proposalPeriod, votingPeriod time.Duration) Phase {
	if t.Executed {
		return Completed
	}
	created := time.Unix(int64(t.CreatedAt), 0)
	votingStart := created.Add(proposalPeriod)
	switch {
	case now.Before(votingStart):
		return Proposal
	case now.Before(votingStart.Add(votingPeriod)):
		return Voting
	default:
		return Execution
	}
}
