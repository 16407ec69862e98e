package models

import (
	"fmt"
	"time"
)

// SizingKind selects which sizing rule an account uses.
type SizingKind string

const (
	SizingPercentage  SizingKind = "percentage"
	SizingFixedAmount SizingKind = "fixed_amount"
)

// Sizing is the stake rule for an account: a percentage of balance or a
// fixed amount. Exactly one variant is active, enforced at construction.
type Sizing struct {
	Kind  SizingKind `json:"kind"`
	Value float64    `json:"value"`
}

// NewPercentageSizing builds a percentage sizing in (0, 100].
func NewPercentageSizing(pct float64) (Sizing, error) {
	if pct <= 0 || pct > 100 {
		return Sizing{}, fmt.Errorf("percentage must be in (0, 100], got %v", pct)
	}
	return Sizing{Kind: SizingPercentage, Value: pct}, nil
}

// NewFixedSizing builds a fixed-amount sizing, amount > 0.
func NewFixedSizing(amount float64) (Sizing, error) {
	if amount <= 0 {
		return Sizing{}, fmt.Errorf("fixed amount must be > 0, got %v", amount)
	}
	return Sizing{Kind: SizingFixedAmount, Value: amount}, nil
}

// Stake resolves the sizing rule against a balance.
func (s Sizing) Stake(balance float64) float64 {
	if s.Kind == SizingPercentage {
		return balance * s.Value / 100
	}
	return s.Value
}

// Account is one trading credential with its sizing rule and cached balance.
// The name is the unique key and is immutable except through Rename.
type Account struct {
	Name          string     `json:"name"`
	Credential    string     `json:"credential"`
	Sizing        Sizing     `json:"sizing"`
	LastBalance   *float64   `json:"last_balance,omitempty"`
	LastBalanceAt *time.Time `json:"last_balance_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Summary is the read-only account view exposed by the status aggregator.
// The credential is deliberately omitted.
type Summary struct {
	Name          string     `json:"name"`
	Sizing        Sizing     `json:"sizing"`
	LastBalance   *float64   `json:"last_balance,omitempty"`
	LastBalanceAt *time.Time `json:"last_balance_at,omitempty"`
}

// Summary returns the exposable view of the account.
func (a *Account) Summary() Summary {
	return Summary{
		Name:          a.Name,
		Sizing:        a.Sizing,
		LastBalance:   a.LastBalance,
		LastBalanceAt: a.LastBalanceAt,
	}
}

// Clone returns a deep copy so registry snapshots never alias live entries.
func (a *Account) Clone() *Account {
	c := *a
	if a.LastBalance != nil {
		v := *a.LastBalance
		c.LastBalance = &v
	}
	if a.LastBalanceAt != nil {
		t := *a.LastBalanceAt
		c.LastBalanceAt = &t
	}
	return &c
}
