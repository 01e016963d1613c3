// Package users holds the per-user document shared by the economy,
// reputation, activity and shop services, and the store contract they
// mutate it through.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type User struct {
	ID         string    `json:"id"`
	Economy    Economy   `json:"economy"`
	Reputation int64     `json:"reputation"`
	Inventory  Inventory `json:"inventory"`
	Stats      Stats     `json:"stats"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
}

type Economy struct {
	Hand        int64 `json:"hand"`
	Bank        int64 `json:"bank"`
	DailyStreak int   `json:"dailyStreak"`
	// LastDailyAt is a unix timestamp in seconds, zero when never claimed.
	LastDailyAt int64 `json:"lastDailyAt"`
}

func (e Economy) Total() int64 { return e.Hand + e.Bank }

// Inventory maps item ids to held quantity. Zero quantities are removed.
type Inventory map[string]int64

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for id, qty := range inv {
		out[id] = qty
	}
	return out
}

type Stats struct {
	Messages int64 `json:"messages"`
}

func New(id string, now time.Time) User {
	return User{
		ID:        id,
		Inventory: Inventory{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no maps with u.
func (u User) Clone() User {
	out := u
	out.Inventory = u.Inventory.Clone()
	return out
}

type Section string

const (
	SectionEconomy    Section = "economy"
	SectionReputation Section = "reputation"
	SectionInventory  Section = "inventory"
	SectionStats      Section = "stats"
)

// Patch names a set of document sections and their values. A nil field is
// not part of the patch.
type Patch struct {
	Economy    *Economy
	Reputation *int64
	Inventory  *Inventory
	Stats      *Stats
}

// SectionValue is one encoded section of a Patch.
type SectionValue struct {
	Section Section
	JSON    []byte
}

// Encode returns the sections of p in a fixed order with their JSON form.
func (p Patch) Encode() ([]SectionValue, error) {
	var out []SectionValue
	add := func(section Section, value any) error {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", section, err)
		}
		out = append(out, SectionValue{Section: section, JSON: raw})
		return nil
	}
	if p.Economy != nil {
		if err := add(SectionEconomy, *p.Economy); err != nil {
			return nil, err
		}
	}
	if p.Reputation != nil {
		if err := add(SectionReputation, *p.Reputation); err != nil {
			return nil, err
		}
	}
	if p.Inventory != nil {
		inv := *p.Inventory
		if inv == nil {
			inv = Inventory{}
		}
		if err := add(SectionInventory, inv); err != nil {
			return nil, err
		}
	}
	if p.Stats != nil {
		if err := add(SectionStats, *p.Stats); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p Patch) Sections() []Section {
	var out []Section
	if p.Economy != nil {
		out = append(out, SectionEconomy)
	}
	if p.Reputation != nil {
		out = append(out, SectionReputation)
	}
	if p.Inventory != nil {
		out = append(out, SectionInventory)
	}
	if p.Stats != nil {
		out = append(out, SectionStats)
	}
	return out
}

// Of extracts the given sections of u as a patch.
func Of(u User, sections ...Section) Patch {
	var p Patch
	for _, section := range sections {
		switch section {
		case SectionEconomy:
			e := u.Economy
			p.Economy = &e
		case SectionReputation:
			r := u.Reputation
			p.Reputation = &r
		case SectionInventory:
			inv := u.Inventory.Clone()
			p.Inventory = &inv
		case SectionStats:
			s := u.Stats
			p.Stats = &s
		}
	}
	return p
}

// Clone returns a copy of p with its own inventory map.
func (p Patch) Clone() Patch {
	out := p
	if p.Economy != nil {
		e := *p.Economy
		out.Economy = &e
	}
	if p.Reputation != nil {
		r := *p.Reputation
		out.Reputation = &r
	}
	if p.Inventory != nil {
		inv := p.Inventory.Clone()
		out.Inventory = &inv
	}
	if p.Stats != nil {
		st := *p.Stats
		out.Stats = &st
	}
	return out
}

// Apply writes the sections present in p onto u.
func (p Patch) Apply(u *User) {
	if p.Economy != nil {
		u.Economy = *p.Economy
	}
	if p.Reputation != nil {
		u.Reputation = *p.Reputation
	}
	if p.Inventory != nil {
		u.Inventory = p.Inventory.Clone()
	}
	if p.Stats != nil {
		u.Stats = *p.Stats
	}
}

var ErrInvalidPatch = errors.New("users: invalid patch")

// ValidatePatch checks that a CAS compares and writes the same sections.
func ValidatePatch(expected, next Patch) error {
	want := expected.Sections()
	got := next.Sections()
	if len(want) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidPatch)
	}
	if len(want) != len(got) {
		return fmt.Errorf("%w: expected %v, next %v", ErrInvalidPatch, want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: expected %v, next %v", ErrInvalidPatch, want, got)
		}
	}
	return nil
}

type Store interface {
	// Ensure returns the user document, creating the default one when absent.
	Ensure(ctx context.Context, id string) (User, error)
	Get(ctx context.Context, id string) (User, bool, error)
	// CompareAndSwap writes next only if every section of expected still
	// equals the stored one. A lost race is reported as false, not as an
	// error.
	CompareAndSwap(ctx context.Context, id string, expected, next Patch) (User, bool, error)
}
