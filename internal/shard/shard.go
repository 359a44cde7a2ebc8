// Package shard splits sealed document payloads into independently addressed
// fragments and puts them back together.
//
// A shard's identifier is a random UUID with no relationship to its document,
// its siblings or its position. The position (Index) travels only in the
// local document record.
package shard

import (
	"errors"
	"fmt"
	"slices"

	"vaultx/internal/domain"

	"github.com/google/uuid"
)

const (
	// DefaultCount is the number of shards per document.
	DefaultCount = 3
	// MaxCount bounds the configurable shard count.
	MaxCount = 16
)

var (
	// ErrInvalidCount is returned when the shard count is out of range.
	ErrInvalidCount = errors.New("shard count out of range")

	// ErrEmptyPayload is returned when there is nothing to split.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrIncompleteFragmentSet is returned when fewer shards are supplied than
	// the document record declares.
	ErrIncompleteFragmentSet = errors.New("incomplete fragment set")

	// ErrCorruptFragmentSet is returned when the supplied shards cannot form
	// the original payload: duplicate or unknown indices, surplus shards, or a
	// reassembled payload that fails authentication.
	ErrCorruptFragmentSet = errors.New("corrupt fragment set")
)

// Shard is one fragment of a sealed payload.
type Shard struct {
	ID    string
	Index int
	Data  []byte
}

// NewID returns a fresh random shard identifier.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate shard id: %w", err)
	}
	return id.String(), nil
}

// Split divides payload into n contiguous shards of near-equal size. When the
// payload is shorter than n bytes, one shard per byte is produced.
func Split(payload []byte, n int) ([]Shard, error) {
	if n < 1 || n > MaxCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if n > len(payload) {
		n = len(payload)
	}

	size, rem := len(payload)/n, len(payload)%n
	shards := make([]Shard, 0, n)
	off := 0
	for i := 0; i < n; i++ {
		l := size
		if i < rem {
			l++
		}

		id, err := NewID()
		if err != nil {
			return nil, err
		}

		shards = append(shards, Shard{
			ID:    id,
			Index: i,
			Data:  append([]byte(nil), payload[off:off+l]...),
		})
		off += l
	}

	return shards, nil
}

// Refs returns the (id, index) pairs to keep in the local document record.
func Refs(shards []Shard) []domain.ShardRef {
	refs := make([]domain.ShardRef, len(shards))
	for i, s := range shards {
		refs[i] = domain.ShardRef{ShardID: s.ID, Index: s.Index}
	}
	return refs
}

// Reassemble orders shards by their caller-supplied Index, never by ID or
// arrival order, and concatenates them. expected is the shard count declared
// by the document record.
func Reassemble(shards []Shard, expected int) ([]byte, error) {
	if expected < 1 {
		return nil, fmt.Errorf("%w: document declares %d shards", ErrCorruptFragmentSet, expected)
	}
	if len(shards) < expected {
		return nil, fmt.Errorf("%w: have %d of %d shards", ErrIncompleteFragmentSet, len(shards), expected)
	}
	if len(shards) > expected {
		return nil, fmt.Errorf("%w: have %d shards, expected %d", ErrCorruptFragmentSet, len(shards), expected)
	}

	ordered := slices.Clone(shards)
	slices.SortFunc(ordered, func(a, b Shard) int { return a.Index - b.Index })

	total := 0
	for i, s := range ordered {
		if s.Index != i {
			return nil, fmt.Errorf("%w: unexpected shard index %d", ErrCorruptFragmentSet, s.Index)
		}
		total += len(s.Data)
	}

	payload := make([]byte, 0, total)
	for _, s := range ordered {
		payload = append(payload, s.Data...)
	}
	return payload, nil
}
