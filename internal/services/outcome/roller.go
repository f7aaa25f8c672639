package outcome

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var ErrRollsExhausted = errors.New("no more rolls")

// Roller produces die values in 1..6.
type Roller interface {
	Roll(ctx context.Context) (int, error)
}

// CryptoRoller draws from crypto/rand.
type CryptoRoller struct{}

func (CryptoRoller) Roll(ctx context.Context) (int, error) {
	err := ctx.Err()
	if err != nil {
		return 0, err
	}

	n, err := rand.Int(rand.Reader, big.NewInt(6))
	if err != nil {
		return 0, fmt.Errorf("read entropy: %w", err)
	}

	return int(n.Int64()) + 1, nil
}

// FixedRoller replays a fixed sequence. Err, when set, is returned
// instead of a value.
type FixedRoller struct {
	mu     sync.Mutex
	values []int
	Err    error
}

func NewFixedRoller(values ...int) *FixedRoller {
	return &FixedRoller{values: values}
}

func (r *FixedRoller) Roll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return 0, r.Err
	}

	if len(r.values) == 0 {
		return 0, ErrRollsExhausted
	}

	v := r.values[0]
	r.values = r.values[1:]

	return v, nil
}

// Push appends values to the sequence.
func (r *FixedRoller) Push(values ...int) {
	r.mu.Lock()
	r.values = append(r.values, values...)
	r.mu.Unlock()
}
