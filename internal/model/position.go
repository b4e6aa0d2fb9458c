package model

import "fmt"

// Position is a chain location: block height plus the block hash as a
// tie-breaker. Hash may be empty for positions built from configuration.
type Position struct {
	Number uint64 `json:"number"`
	Hash   string `json:"hash,omitempty"`
}

// Less orders positions by height, then by hash.
func (p Position) Less(other Position) bool {
	if p.Number != other.Number {
		return p.Number < other.Number
	}
	return p.Hash < other.Hash
}

func (p Position) String() string {
	if p.Hash == "" {
		return fmt.Sprintf("%d", p.Number)
	}
	return fmt.Sprintf("%d(%s)", p.Number, p.Hash)
}

// Checkpoint is the persisted progress of a stream. Current is the last block
// fully written to the sink. Initial is where the stream first started.
type Checkpoint struct {
	Current Position `json:"current"`
	Initial Position `json:"initial"`
}

// Fresh reports whether no progress has been made since the stream began.
func (c Checkpoint) Fresh() bool {
	return c.Initial.Number == c.Current.Number
}
