package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrExists = errors.New("content: already exists")

// Editor changes pack files in place. Every change is applied to a copy,
// validated against the whole pack and only then written back.
type Editor struct {
	dir     string
	items   *document
	quests  *document
	recipes *document
	store   *document
}

// document is one pack file kept as generic JSON so fields the models do
// not know about survive an edit.
type document struct {
	kind string
	path string
	list string
	key  string
	body map[string]any
}

func OpenEditor(dir string) (*Editor, error) {
	paths, err := ResolvePaths(dir)
	if err != nil {
		return nil, err
	}
	e := &Editor{
		dir:     dir,
		items:   &document{kind: "item", path: paths.Items, list: "items", key: "id"},
		quests:  &document{kind: "quest", path: paths.Quests, list: "quests", key: "id"},
		recipes: &document{kind: "recipe", path: paths.Recipes, list: "recipes", key: "id"},
		store:   &document{kind: "store item", path: paths.Store, list: "items", key: "itemId"},
	}
	for _, d := range []*document{e.items, e.quests, e.recipes} {
		if err := decodeFile(d.path, &d.body); err != nil {
			return nil, err
		}
	}
	if e.store.path == "" {
		e.store.path = filepath.Join(dir, StoreName+".json")
	} else if err := decodeFile(e.store.path, &e.store.body); err != nil {
		return nil, err
	}
	return e, nil
}

// Paths reports where each pack is written. Store points at the file a
// first store entry would create when the pack does not exist yet.
func (e *Editor) Paths() Paths {
	return Paths{Items: e.items.path, Quests: e.quests.path, Recipes: e.recipes.path, Store: e.store.path}
}

// Pack decodes the current documents.
func (e *Editor) Pack() (*Pack, error) {
	return e.decode(nil, nil)
}

func (e *Editor) decode(changed *document, next map[string]any) (*Pack, error) {
	body := func(d *document) map[string]any {
		if d == changed {
			return next
		}
		return d.body
	}
	pack := &Pack{Dir: e.dir, Paths: e.Paths()}
	if err := remarshal(e.items.path, body(e.items), &pack.Items); err != nil {
		return nil, err
	}
	if err := remarshal(e.quests.path, body(e.quests), &pack.Quests); err != nil {
		return nil, err
	}
	if err := remarshal(e.recipes.path, body(e.recipes), &pack.Recipes); err != nil {
		return nil, err
	}
	if store := body(e.store); store != nil {
		pack.Store = &StorePack{}
		if err := remarshal(e.store.path, store, pack.Store); err != nil {
			return nil, err
		}
	}
	return pack, nil
}

func remarshal(path string, body map[string]any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// change runs fn on a copy of d, validates the resulting pack and saves d.
func (e *Editor) change(d *document, fn func(body map[string]any) error) error {
	var next map[string]any
	if d.body == nil {
		next = map[string]any{"schemaVersion": 1, d.list: []any{}}
	} else if err := remarshal(d.path, d.body, &next); err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	pack, err := e.decode(d, next)
	if err != nil {
		return err
	}
	if err := pack.Check(); err != nil {
		return err
	}
	if err := WriteFile(d.path, next); err != nil {
		return err
	}
	d.body = next
	return nil
}

func (d *document) entries(body map[string]any) ([]any, error) {
	switch list := body[d.list].(type) {
	case nil:
		return nil, nil
	case []any:
		return list, nil
	default:
		return nil, fmt.Errorf("%s: %q is not an array", d.path, d.list)
	}
}

func (d *document) find(entries []any, id string) int {
	for idx, entry := range entries {
		if obj, ok := entry.(map[string]any); ok && obj[d.key] == id {
			return idx
		}
	}
	return -1
}

func (d *document) add(id string, entry map[string]any) func(map[string]any) error {
	return func(body map[string]any) error {
		entries, err := d.entries(body)
		if err != nil {
			return err
		}
		if d.find(entries, id) >= 0 {
			return fmt.Errorf("%w: %s %q", ErrExists, d.kind, id)
		}
		body[d.list] = append(entries, entry)
		return nil
	}
}

func (d *document) remove(id string) func(map[string]any) error {
	return func(body map[string]any) error {
		entries, err := d.entries(body)
		if err != nil {
			return err
		}
		idx := d.find(entries, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s %q", ErrNotFound, d.kind, id)
		}
		body[d.list] = append(entries[:idx:idx], entries[idx+1:]...)
		return nil
	}
}

func (d *document) update(id string, fn func(entry map[string]any) error) func(map[string]any) error {
	return func(body map[string]any) error {
		entries, err := d.entries(body)
		if err != nil {
			return err
		}
		idx := d.find(entries, id)
		if idx < 0 {
			return fmt.Errorf("%w: %s %q", ErrNotFound, d.kind, id)
		}
		return fn(entries[idx].(map[string]any))
	}
}

func setter(path string, value any) func(map[string]any) error {
	return func(entry map[string]any) error { return SetPath(entry, path, value) }
}

func unsetter(path string) func(map[string]any) error {
	return func(entry map[string]any) error { return UnsetPath(entry, path) }
}

// NewItem describes an item to create. Zero SuggestedPrice takes the
// item value, at least 1.
type NewItem struct {
	ID             string
	Name           string
	Description    string
	Emoji          string
	MaxStack       int64
	Weight         float64
	CanStack       bool
	Value          int64
	Tradable       bool
	Category       string
	SuggestedPrice int64
	MinPrice       int64
	MaxPrice       int64
}

func (e *Editor) CreateItem(item NewItem) error {
	suggested := item.SuggestedPrice
	if suggested == 0 {
		suggested = max(1, item.Value)
	}
	entry := map[string]any{
		"id":          item.ID,
		"name":        item.Name,
		"description": item.Description,
		"emoji":       item.Emoji,
		"maxStack":    item.MaxStack,
		"weight":      item.Weight,
		"canStack":    item.CanStack,
		"value":       item.Value,
		"market": map[string]any{
			"tradable":       item.Tradable,
			"category":       item.Category,
			"suggestedPrice": suggested,
			"minPrice":       item.MinPrice,
			"maxPrice":       item.MaxPrice,
		},
	}
	return e.change(e.items, e.items.add(item.ID, entry))
}

func (e *Editor) DeleteItem(id string) error {
	return e.change(e.items, e.items.remove(id))
}

func (e *Editor) SetItem(id, path string, value any) error {
	return e.change(e.items, e.items.update(id, setter(path, value)))
}

func (e *Editor) UnsetItem(id, path string) error {
	return e.change(e.items, e.items.update(id, unsetter(path)))
}

// NewQuest describes a quest to create. It starts with one gather step on
// the first item of the pack. RepeatHours only applies to cooldown repeats.
type NewQuest struct {
	ID          string
	Title       string
	Description string
	Icon        string
	Difficulty  string
	RepeatKind  string
	RepeatHours int64
	Profession  string
	MinLevel    int64
	Requires    []string
	Coins       int64
	XP          int64
	Disabled    bool
}

// fallbackStepItem is used when the items pack has no valid id yet.
const fallbackStepItem = "pyrite_ore"

func (e *Editor) CreateQuest(quest NewQuest) error {
	repeat := map[string]any{"kind": quest.RepeatKind}
	if quest.RepeatKind == "cooldown" {
		repeat["hours"] = quest.RepeatHours
	}

	prerequisites := map[string]any{}
	if quest.Profession != "" {
		prerequisites["profession"] = quest.Profession
	}
	if quest.MinLevel > 0 {
		prerequisites["minLevel"] = quest.MinLevel
	}
	if len(quest.Requires) > 0 {
		prerequisites["requiresQuestsCompleted"] = quest.Requires
	}

	rewards := map[string]any{"xp": quest.XP}
	if quest.Coins > 0 {
		rewards["currency"] = []any{map[string]any{"id": "coins", "amount": quest.Coins}}
	}

	entry := map[string]any{
		"id":          quest.ID,
		"title":       quest.Title,
		"description": quest.Description,
		"icon":        quest.Icon,
		"difficulty":  quest.Difficulty,
		"repeat":      repeat,
		"steps": []any{map[string]any{
			"kind":            StepGatherItem,
			"action":          "mine",
			"itemId":          e.firstItemID(),
			"qty":             1,
			"locationTierMin": 1,
		}},
		"rewards": rewards,
		"enabled": !quest.Disabled,
	}
	if len(prerequisites) > 0 {
		entry["prerequisites"] = prerequisites
	}
	return e.change(e.quests, e.quests.add(quest.ID, entry))
}

func (e *Editor) firstItemID() string {
	entries, _ := e.items.entries(e.items.body)
	for _, entry := range entries {
		obj, _ := entry.(map[string]any)
		if id, ok := obj["id"].(string); ok && ValidID(id) {
			return id
		}
	}
	return fallbackStepItem
}

func (e *Editor) DeleteQuest(id string) error {
	return e.change(e.quests, e.quests.remove(id))
}

func (e *Editor) SetQuest(id, path string, value any) error {
	return e.change(e.quests, e.quests.update(id, setter(path, value)))
}

func (e *Editor) UnsetQuest(id, path string) error {
	return e.change(e.quests, e.quests.update(id, unsetter(path)))
}

// AddStep appends a step of kind to the quest. params fill the
// kind-specific fields.
func (e *Editor) AddStep(questID, kind string, qty int64, params map[string]any) error {
	step := map[string]any{"kind": kind, "qty": qty}
	for key, value := range params {
		step[key] = value
	}
	return e.change(e.quests, e.quests.update(questID, func(quest map[string]any) error {
		steps, _ := quest["steps"].([]any)
		quest["steps"] = append(steps, step)
		return nil
	}))
}

func (e *Editor) RemoveStep(questID string, index int) error {
	return e.change(e.quests, e.quests.update(questID, func(quest map[string]any) error {
		steps, _ := quest["steps"].([]any)
		if index < 0 || index >= len(steps) {
			return fmt.Errorf("step index %d out of bounds (size=%d)", index, len(steps))
		}
		quest["steps"] = append(steps[:index:index], steps[index+1:]...)
		return nil
	}))
}

// NewStoreItem describes a store entry. Zero prices derive from the item:
// buy at its value (10 without one) and sell at 85% of the buy price.
type NewStoreItem struct {
	ItemID        string
	Name          string
	BuyPrice      int64
	SellPrice     int64
	Stock         int64
	Unavailable   bool
	Description   string
	Category      string
	PurchaseLimit int64
	RequiredRole  string
}

const defaultBuyPrice = 10

func (e *Editor) AddStoreItem(listing NewStoreItem) error {
	items, _ := e.items.entries(e.items.body)
	idx := e.items.find(items, listing.ItemID)
	if idx < 0 {
		return fmt.Errorf("%w: item %q", ErrNotFound, listing.ItemID)
	}
	item := items[idx].(map[string]any)

	name := listing.Name
	if name == "" {
		name, _ = item["name"].(string)
	}
	buy := listing.BuyPrice
	if buy == 0 {
		buy = defaultBuyPrice
		if value := number(item["value"]); value > 0 {
			buy = value
		}
	}
	sell := listing.SellPrice
	if sell == 0 {
		sell = max(1, buy*85/100)
	}

	entry := map[string]any{
		"itemId":    listing.ItemID,
		"name":      name,
		"buyPrice":  buy,
		"sellPrice": sell,
		"stock":     listing.Stock,
		"available": !listing.Unavailable,
	}
	if listing.Description != "" {
		entry["description"] = listing.Description
	}
	if listing.Category != "" {
		entry["category"] = listing.Category
	}
	if listing.PurchaseLimit > 0 {
		entry["purchaseLimit"] = listing.PurchaseLimit
	}
	if listing.RequiredRole != "" {
		entry["requiredRole"] = listing.RequiredRole
	}
	return e.change(e.store, e.store.add(listing.ItemID, entry))
}

func (e *Editor) RemoveStoreItem(itemID string) error {
	if e.store.body == nil {
		return fmt.Errorf("%w: store item %q", ErrNotFound, itemID)
	}
	return e.change(e.store, e.store.remove(itemID))
}

func (e *Editor) SetStoreItem(itemID, path string, value any) error {
	if e.store.body == nil {
		return fmt.Errorf("%w: store item %q", ErrNotFound, itemID)
	}
	return e.change(e.store, e.store.update(itemID, setter(path, value)))
}

func number(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// WriteFile replaces path with v as indented JSON. The data goes to a
// sibling temp file first and is renamed over path, so readers never see a
// partial pack.
func WriteFile(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// SplitList parses a comma separated id list, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
