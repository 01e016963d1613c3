// Package autorole decides which roles a member earns on join and when a
// counter (reputation, messages) crosses a configured threshold.
package autorole

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
)

type Trigger string

const (
	TriggerJoin       Trigger = "join"
	TriggerReputation Trigger = "reputation"
	TriggerMessages   Trigger = "messages"
)

var ErrUnknownTrigger = errors.New("autorole: unknown trigger")

func ParseTrigger(raw string) (Trigger, error) {
	switch Trigger(raw) {
	case TriggerJoin, TriggerReputation, TriggerMessages:
		return Trigger(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTrigger, raw)
}

type Rule struct {
	GuildID   string
	RoleID    string
	Trigger   Trigger
	Threshold int64
}

type RuleSource interface {
	Rules(ctx context.Context, guildID string, trigger Trigger) ([]Rule, error)
}

type Engine struct {
	rules  RuleSource
	logger *zap.Logger
}

func NewEngine(rules RuleSource, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: rules, logger: logger}
}

// OnJoin returns the roles every new member of guildID receives.
func (e *Engine) OnJoin(ctx context.Context, guildID string) ([]string, error) {
	rules, err := e.rules.Rules(ctx, guildID, TriggerJoin)
	if err != nil {
		return nil, fmt.Errorf("load join rules: %w", err)
	}
	roles := make([]string, 0, len(rules))
	for _, rule := range rules {
		roles = append(roles, rule.RoleID)
	}
	return roles, nil
}

// OnProgress returns the roles whose threshold was crossed by a counter
// moving from before to after. A role is returned only on the crossing
// event, so repeated events never grant it twice.
func (e *Engine) OnProgress(ctx context.Context, guildID string, trigger Trigger, before, after int64) ([]string, error) {
	if trigger == TriggerJoin {
		return nil, fmt.Errorf("%w: %s has no threshold", ErrUnknownTrigger, trigger)
	}
	if after <= before {
		return nil, nil
	}
	rules, err := e.rules.Rules(ctx, guildID, trigger)
	if err != nil {
		return nil, fmt.Errorf("load %s rules: %w", trigger, err)
	}
	var roles []string
	for _, rule := range rules {
		if before < rule.Threshold && rule.Threshold <= after {
			roles = append(roles, rule.RoleID)
		}
	}
	if len(roles) > 0 {
		e.logger.Debug("autorole thresholds crossed",
			zap.String("guild_id", guildID),
			zap.String("trigger", string(trigger)),
			zap.Int64("value", after),
			zap.Strings("roles", roles),
		)
	}
	return roles, nil
}

// StoreSource reads rules from the SQLite store.
type StoreSource struct {
	Store *storage.Store
}

func (s StoreSource) Rules(ctx context.Context, guildID string, trigger Trigger) ([]Rule, error) {
	stored, err := s.Store.AutoroleRules(ctx, guildID, string(trigger))
	if err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(stored))
	for _, rule := range stored {
		rules = append(rules, Rule{
			GuildID:   rule.GuildID,
			RoleID:    rule.RoleID,
			Trigger:   Trigger(rule.Trigger),
			Threshold: rule.Threshold,
		})
	}
	return rules, nil
}

// Seed upserts rules into the store. A rule already stored for the same
// role and trigger takes the new threshold.
func (s StoreSource) Seed(ctx context.Context, rules []Rule) error {
	for _, rule := range rules {
		if _, err := ParseTrigger(string(rule.Trigger)); err != nil {
			return err
		}
		err := s.Store.UpsertAutoroleRule(ctx, storage.AutoroleRule{
			GuildID:   rule.GuildID,
			RoleID:    rule.RoleID,
			Trigger:   string(rule.Trigger),
			Threshold: rule.Threshold,
		})
		if err != nil {
			return fmt.Errorf("seed %s rule for role %s: %w", rule.Trigger, rule.RoleID, err)
		}
	}
	return nil
}
