// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"encoding/binary"
	"errors"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

var (
	eventPrefix = []byte("event:")
	eventSeqKey = []byte("eventSeq")
)

// Attr is a single key/value pair attached to an Event.
type Attr struct {
	Key   string `serialize:"true" json:"key"`
	Value string `serialize:"true" json:"value"`
}

// Event is an append-only notification of a state change. Events are
// written inside the emitting Run, so an operation that fails leaves no
// events behind.
type Event struct {
	Seq      uint64      `serialize:"true" json:"seq"`
	Time     uint64      `serialize:"true" json:"time"`
	Emitter  ids.ShortID `serialize:"true" json:"emitter"`
	Name     string      `serialize:"true" json:"name"`
	TicketID uint64      `serialize:"true" json:"ticketID"`
	Attrs    []Attr      `serialize:"true" json:"attrs"`
}

// Attr returns the value of key, or "" if the event does not carry it.
func (e *Event) Attr(key string) string {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventPrefix)+8)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], seq)
	return key
}

// Emit appends e to the event log, stamping its sequence number and time.
func (l *Ledger) Emit(e Event) error {
	return l.Run(func(db database.Database) error {
		seq, err := lastEventSeq(db)
		if err != nil {
			return err
		}
		seq++

		e.Seq = seq
		e.Time = l.clock.Unix()
		b, err := Codec.Marshal(CodecVersion, &e)
		if err != nil {
			return err
		}
		if err := db.Put(eventKey(seq), b); err != nil {
			return err
		}
		if err := database.PutUInt64(db, eventSeqKey, seq); err != nil {
			return err
		}

		l.log.Debug("event",
			log.String("name", e.Name),
			log.Uint64("seq", seq),
			log.Uint64("ticketID", e.TicketID),
			log.Stringer("emitter", e.Emitter),
		)
		return nil
	})
}

// LastEventSeq returns the sequence number of the newest event, or 0.
func (l *Ledger) LastEventSeq() (uint64, error) {
	return lastEventSeq(l.DB())
}

// Events returns up to limit events with sequence numbers >= from.
func (l *Ledger) Events(from uint64, limit int) ([]Event, error) {
	db := l.DB()
	last, err := lastEventSeq(db)
	if err != nil {
		return nil, err
	}
	from = max(from, 1)

	var events []Event
	for seq := from; seq <= last && len(events) < limit; seq++ {
		b, err := db.Get(eventKey(seq))
		if err != nil {
			return nil, err
		}
		var e Event
		if _, err := Codec.Unmarshal(b, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func lastEventSeq(db database.Database) (uint64, error) {
	seq, err := database.GetUInt64(db, eventSeqKey)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return seq, err
}
