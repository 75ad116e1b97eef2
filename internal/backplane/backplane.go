// Package backplane carries room broadcasts between gateway processes.
package backplane

import (
	"context"
	"encoding/json"
)

// Envelope kinds.
const (
	KindRoom        = "room"
	KindUserOutside = "user_outside"
	KindAll         = "all"
)

// Envelope is one broadcast. Payload is the already encoded wire frame.
type Envelope struct {
	Node        string          `json:"node_id"`
	Kind        string          `json:"kind"`
	Room        string          `json:"room"`
	UserID      int             `json:"user_id,omitempty"`
	ExcludeConn string          `json:"exclude_conn,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// Deliverer writes an envelope to the connections held by this process.
type Deliverer interface {
	Deliver(env Envelope)
}

// Publisher distributes envelopes to every process, this one included.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Local delivers in-process only.
type Local struct {
	deliverer Deliverer
}

func NewLocal(d Deliverer) *Local {
	return &Local{deliverer: d}
}

func (l *Local) Publish(_ context.Context, env Envelope) error {
	l.deliverer.Deliver(env)
	return nil
}

func (l *Local) Close() error { return nil }
