package swaps

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
)

// Ordering decides which token of a pair is reported as tokenA. Priority
// tokens come first in list order; other tokens follow in address order.
type Ordering struct {
	rank map[common.Address]int
}

// NewOrdering ranks the priority tokens ahead of all others, in list order.
func NewOrdering(priority []common.Address) Ordering {
	rank := make(map[common.Address]int, len(priority))
	for i, token := range priority {
		if _, ok := rank[token]; !ok {
			rank[token] = i
		}
	}
	return Ordering{rank: rank}
}

// Less reports whether x sorts before y.
func (o Ordering) Less(x, y common.Address) bool {
	rx, xok := o.rank[x]
	ry, yok := o.rank[y]
	switch {
	case xok && yok:
		return rx < ry
	case xok:
		return true
	case yok:
		return false
	default:
		return bytes.Compare(x.Bytes(), y.Bytes()) < 0
	}
}
