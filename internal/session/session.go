// Package session defines the durable session model backing the gateway, the
// store contract it is persisted through, and the cookie that carries the
// session id to the client.
//
// A session record is either pending (a login attempt in flight, holding the
// CSRF state and the URI to return to) or authenticated. The distinction is
// decided once, when a record is read from the store, and never re-interpreted.
package session

import (
	"context"
	"time"
)

// Kind discriminates the two session shapes.
type Kind int

const (
	// KindPending marks an in-progress login attempt.
	KindPending Kind = iota
	// KindAuthenticated marks a completed login.
	KindAuthenticated
)

// Record is one stored session, keyed by ID. Expire is absolute epoch seconds;
// honoring it is the store's responsibility, application code never compares
// it against the clock. State and BackURI are meaningful only for KindPending.
type Record struct {
	ID      string
	Expire  int64
	Kind    Kind
	State   string
	BackURI string
}

// NewPending builds a pending record for a login attempt started now.
func NewPending(id, state, backURI string, ttl time.Duration) *Record {
	return &Record{
		ID:      id,
		Expire:  time.Now().Add(ttl).Unix(),
		Kind:    KindPending,
		State:   state,
		BackURI: backURI,
	}
}

// NewAuthenticated builds an authenticated record for a login completed now.
func NewAuthenticated(id string, ttl time.Duration) *Record {
	return &Record{
		ID:     id,
		Expire: time.Now().Add(ttl).Unix(),
		Kind:   KindAuthenticated,
	}
}

// Store is the durable key-value store holding session records. Point
// operations must be atomic per id; expiry cleanup is the store's job.
//
// Get returns (nil, nil) when no record exists under id, including when the
// stored blob cannot be interpreted as a record: a session the gateway cannot
// read is a session that does not exist.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}

// wireRecord is the stored shape, shared by every driver: pending records
// carry temp=true plus the state and return URI, authenticated records carry
// only id and expire.
type wireRecord struct {
	ID      string `json:"id" dynamodbav:"id"`
	Expire  int64  `json:"expire" dynamodbav:"expire"`
	Temp    bool   `json:"temp,omitempty" dynamodbav:"temp,omitempty"`
	State   string `json:"state,omitempty" dynamodbav:"state,omitempty"`
	BackURI string `json:"backuri,omitempty" dynamodbav:"backuri,omitempty"`
}

func toWire(rec *Record) wireRecord {
	w := wireRecord{
		ID:     rec.ID,
		Expire: rec.Expire,
	}
	if rec.Kind == KindPending {
		w.Temp = true
		w.State = rec.State
		w.BackURI = rec.BackURI
	}
	return w
}

func fromWire(w wireRecord) *Record {
	rec := &Record{
		ID:     w.ID,
		Expire: w.Expire,
		Kind:   KindAuthenticated,
	}
	if w.Temp {
		rec.Kind = KindPending
		rec.State = w.State
		rec.BackURI = w.BackURI
	}
	return rec
}
