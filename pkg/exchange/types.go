// Package exchange implements multi-source exchange rate routing and
// aggregation: a registry of venue adapters with a derived pair index,
// direct/inverse/proxy pair routing over that index, and concurrent
// fan-out with outlier-trimmed averaging.
package exchange

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Chained pair multiplications and reciprocals need more headroom than
	// shopspring's default 16 digits of division precision.
	if decimal.DivisionPrecision < 30 {
		decimal.DivisionPrecision = 30
	}
}

// Ticker field names accepted by rate lookups.
const (
	FieldLast   = "last"
	FieldBid    = "bid"
	FieldAsk    = "ask"
	FieldOpen   = "open"
	FieldClose  = "close"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldVolume = "volume"
)

// ValidField reports whether name is a known ticker field.
func ValidField(name string) bool {
	switch name {
	case FieldLast, FieldBid, FieldAsk, FieldOpen, FieldClose, FieldHigh, FieldLow, FieldVolume:
		return true
	}
	return false
}

// Pair is an ordered from/to currency symbol tuple. Both symbols are always
// stored upper-cased.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewPair builds a Pair, upper-casing both symbols.
func NewPair(from, to string) Pair {
	return Pair{From: strings.ToUpper(from), To: strings.ToUpper(to)}
}

// Key returns the canonical "{FROM}_{TO}" index key for the pair.
func (p Pair) Key() string {
	return p.From + "_" + p.To
}

// Inverse returns the pair quoted in the opposite direction.
func (p Pair) Inverse() Pair {
	return Pair{From: p.To, To: p.From}
}

func (p Pair) String() string {
	return p.From + "/" + p.To
}

// PairKey builds the canonical "{FROM}_{TO}" key used by the pair index and
// by cache keys.
func PairKey(from, to string) string {
	return strings.ToUpper(from) + "_" + strings.ToUpper(to)
}

// ParsePair parses a "FROM/TO" or "FROM_TO" string into a Pair.
func ParsePair(s string) (Pair, error) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "_"
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("malformed pair %q", s)
	}
	from, to := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if from == "" || to == "" {
		return Pair{}, fmt.Errorf("malformed pair %q", s)
	}
	return NewPair(from, to), nil
}

// PairSet is an unordered set of pairs, as declared by an adapter's
// capability listing.
type PairSet map[Pair]struct{}

// NewPairSet builds a PairSet from the given pairs.
func NewPairSet(pairs ...Pair) PairSet {
	s := make(PairSet, len(pairs))
	for _, p := range pairs {
		s.Add(p.From, p.To)
	}
	return s
}

// Add inserts a pair, upper-casing both symbols.
func (s PairSet) Add(from, to string) {
	s[NewPair(from, to)] = struct{}{}
}

// Has reports whether the exact pair is present.
func (s PairSet) Has(from, to string) bool {
	_, ok := s[NewPair(from, to)]
	return ok
}

// Merge inserts every pair from other.
func (s PairSet) Merge(other PairSet) {
	for p := range other {
		s[p] = struct{}{}
	}
}

// Sorted returns the pairs ordered by key, for deterministic iteration.
func (s PairSet) Sorted() []Pair {
	out := make([]Pair, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
