package outcome

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/fastprodman/casinobot/internal/money"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed payouts.yaml
var defaultPayouts []byte

var ErrInvalidPayouts = errors.New("invalid payout table")

// Payouts maps a payout key (see Game.PayoutKey) to its coefficient.
type Payouts map[string]decimal.Decimal

type payoutFile struct {
	Coefficients map[string]string `yaml:"coefficients"`
}

// DefaultPayouts returns the built-in coefficient table.
func DefaultPayouts() Payouts {
	p, err := ParsePayouts(defaultPayouts)
	if err != nil {
		panic(fmt.Sprintf("embedded payouts: %v", err))
	}

	return p
}

// LoadPayouts reads a YAML table from path. An empty path yields the defaults.
// Keys missing in the file keep their default coefficient.
func LoadPayouts(path string) (Payouts, error) {
	p := DefaultPayouts()
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payouts file: %w", err)
	}

	override, err := ParsePayouts(raw)
	if err != nil {
		return nil, err
	}

	for k, v := range override {
		p[k] = v
	}

	return p, p.Validate()
}

// ParsePayouts decodes a YAML payout table.
func ParsePayouts(raw []byte) (Payouts, error) {
	var f payoutFile

	err := yaml.Unmarshal(raw, &f)
	if err != nil {
		return nil, fmt.Errorf("decode payouts: %w", err)
	}

	p := make(Payouts, len(f.Coefficients))

	for k, v := range f.Coefficients {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayouts, k, err)
		}

		p[k] = d
	}

	return p, nil
}

// Validate checks every game has a coefficient of at least 1.
func (p Payouts) Validate() error {
	for _, g := range All {
		c, ok := p[g.PayoutKey()]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidPayouts, g.PayoutKey())
		}

		if c.LessThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: %q below 1", ErrInvalidPayouts, g.PayoutKey())
		}
	}

	return nil
}

// Coefficient returns the multiplier for g.
func (p Payouts) Coefficient(g Game) decimal.Decimal {
	return p[g.PayoutKey()]
}

// Win is stake × coefficient, rounded down to the minor unit.
func (p Payouts) Win(g Game, stake money.Minor) money.Minor {
	return money.FromDecimal(stake.Decimal().Mul(p.Coefficient(g)))
}
