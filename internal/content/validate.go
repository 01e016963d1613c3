package content

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

func ValidID(id string) bool { return idPattern.MatchString(id) }

// Issue is one validation problem, located by a JSON path such as
// "$quests.quests[2].steps[0].itemId".
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string { return i.Path + ": " + i.Message }

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "content invalid: " + e.Issues[0].String()
	}
	return fmt.Sprintf("content invalid: %d issues, first: %s", len(e.Issues), e.Issues[0])
}

// Check returns a *ValidationError when Validate reports any issue.
func (p *Pack) Check() error {
	if issues := p.Validate(); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Validate checks every pack and the references between them.
func (p *Pack) Validate() []Issue {
	v := &validator{}
	itemIDs := v.items(p.Items)
	recipeIDs := v.recipes(p.Recipes)
	v.quests(p.Quests, itemIDs, recipeIDs)
	if p.Store != nil {
		v.store(*p.Store, itemIDs)
	}
	for _, cycle := range QuestCycles(p.Quests.Quests) {
		v.add("$quests", "%s", "circular dependency detected: "+strings.Join(cycle, " -> "))
	}
	return v.issues
}

type validator struct {
	issues []Issue
}

func (v *validator) add(path, format string, args ...any) {
	v.issues = append(v.issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) nonEmpty(path, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(path, "required non-empty string")
	}
}

func (v *validator) ref(path, id, kind string, known map[string]struct{}) {
	if !ValidID(id) {
		v.add(path, "invalid %s id", kind)
		return
	}
	if _, ok := known[id]; !ok {
		v.add(path, "unknown %s '%s'", kind, id)
	}
}

func (v *validator) items(pack ItemsPack) map[string]struct{} {
	if pack.SchemaVersion != 1 {
		v.add("$items.schemaVersion", "expected 1")
	}
	ids := map[string]struct{}{}
	for idx, item := range pack.Items {
		path := fmt.Sprintf("$items.items[%d]", idx)
		if !ValidID(item.ID) {
			v.add(path+".id", "invalid id, expected ^[a-z0-9_]+$")
		} else if _, dup := ids[item.ID]; dup {
			v.add(path+".id", "duplicate id '%s'", item.ID)
		} else {
			ids[item.ID] = struct{}{}
		}
		v.nonEmpty(path+".name", item.Name)
		v.nonEmpty(path+".description", item.Description)
		if item.MaxStack != nil && *item.MaxStack < 1 {
			v.add(path+".maxStack", "expected integer >= 1")
		}
		if item.Value < 0 {
			v.add(path+".value", "expected number >= 0")
		}
		if item.Market != nil {
			v.market(path+".market", *item.Market)
		}
	}
	return ids
}

func (v *validator) market(path string, m Market) {
	if m.Tradable == nil {
		v.add(path+".tradable", "expected boolean")
	}
	if _, ok := MarketCategories[m.Category]; !ok {
		v.add(path+".category", "expected one of %v", sorted(MarketCategories))
	}
	if m.MinPrice != nil && *m.MinPrice < 1 {
		v.add(path+".minPrice", "expected integer >= 1")
	}
	if m.MaxPrice != nil && *m.MaxPrice < 1 {
		v.add(path+".maxPrice", "expected integer >= 1")
	}
	if m.MinPrice != nil && m.MaxPrice != nil && *m.MaxPrice < *m.MinPrice {
		v.add(path+".maxPrice", "must be >= minPrice")
	}
	if m.SuggestedPrice != nil && m.MinPrice != nil && m.MaxPrice != nil &&
		(*m.SuggestedPrice < *m.MinPrice || *m.SuggestedPrice > *m.MaxPrice) {
		v.add(path+".suggestedPrice", "must be between minPrice and maxPrice")
	}
}

func (v *validator) recipes(pack RecipesPack) map[string]struct{} {
	if pack.SchemaVersion != 1 {
		v.add("$recipes.schemaVersion", "expected 1")
	}
	ids := map[string]struct{}{}
	for idx, recipe := range pack.Recipes {
		path := fmt.Sprintf("$recipes.recipes[%d].id", idx)
		if !ValidID(recipe.ID) {
			v.add(path, "invalid id")
			continue
		}
		if _, dup := ids[recipe.ID]; dup {
			v.add(path, "duplicate id '%s'", recipe.ID)
		}
		ids[recipe.ID] = struct{}{}
	}
	return ids
}

func (v *validator) quests(pack QuestsPack, itemIDs, recipeIDs map[string]struct{}) {
	if pack.SchemaVersion != 1 {
		v.add("$quests.schemaVersion", "expected 1")
	}

	// ids first so prerequisites may point forward
	questIDs := map[string]struct{}{}
	for idx, quest := range pack.Quests {
		path := fmt.Sprintf("$quests.quests[%d].id", idx)
		if !ValidID(quest.ID) {
			v.add(path, "invalid id, expected ^[a-z0-9_]+$")
		} else if _, dup := questIDs[quest.ID]; dup {
			v.add(path, "duplicate id '%s'", quest.ID)
		} else {
			questIDs[quest.ID] = struct{}{}
		}
	}

	for idx, quest := range pack.Quests {
		path := fmt.Sprintf("$quests.quests[%d]", idx)
		v.nonEmpty(path+".title", quest.Title)
		v.nonEmpty(path+".description", quest.Description)
		if _, ok := Difficulties[quest.Level()]; !ok {
			v.add(path+".difficulty", "invalid difficulty")
		}
		if quest.Repeat != nil {
			v.repeat(path+".repeat", *quest.Repeat)
		}
		if quest.Prerequisites != nil {
			v.prerequisites(path+".prerequisites", *quest.Prerequisites, questIDs)
		}
		if len(quest.Steps) == 0 {
			v.add(path+".steps", "expected non-empty array")
		}
		for stepIdx, step := range quest.Steps {
			v.step(fmt.Sprintf("%s.steps[%d]", path, stepIdx), step, itemIDs, recipeIDs)
		}
		v.rewards(path+".rewards", quest.Rewards, itemIDs)
	}
}

func (v *validator) repeat(path string, r Repeat) {
	if _, ok := RepeatKinds[r.Kind]; !ok {
		v.add(path+".kind", "invalid repeat kind '%s'", r.Kind)
		return
	}
	if r.Kind == "cooldown" && (r.Hours == nil || *r.Hours < 1) {
		v.add(path+".hours", "cooldown repeat requires integer hours >= 1")
	}
}

func (v *validator) prerequisites(path string, p Prerequisites, questIDs map[string]struct{}) {
	if p.Profession != "" {
		if _, ok := Professions[p.Profession]; !ok {
			v.add(path+".profession", "invalid profession '%s'", p.Profession)
		}
	}
	if p.MinLevel != nil && *p.MinLevel < 1 {
		v.add(path+".minLevel", "expected integer >= 1")
	}
	for idx, id := range p.RequiresQuestsCompleted {
		v.ref(fmt.Sprintf("%s.requiresQuestsCompleted[%d]", path, idx), id, "quest", questIDs)
	}
}

func (v *validator) step(path string, s Step, itemIDs, recipeIDs map[string]struct{}) {
	if _, ok := StepKinds[s.Kind]; !ok {
		v.add(path+".kind", "invalid step kind '%s'", s.Kind)
		return
	}
	if s.Qty < 1 {
		v.add(path+".qty", "expected integer >= 1")
	}

	switch s.Kind {
	case StepGatherItem:
		if _, ok := GatherActions[s.Action]; !ok {
			v.add(path+".action", "expected 'mine' or 'forest'")
		}
		v.ref(path+".itemId", s.ItemID, "item", itemIDs)
		for name, tier := range map[string]*int64{
			"locationTierMin": s.LocationTierMin,
			"locationTierMax": s.LocationTierMax,
			"toolTierMin":     s.ToolTierMin,
		} {
			if tier != nil && (*tier < tierMin || *tier > tierMax) {
				v.add(path+"."+name, "expected integer between %d and %d", tierMin, tierMax)
			}
		}
		if s.LocationTierMin != nil && s.LocationTierMax != nil && *s.LocationTierMax < *s.LocationTierMin {
			v.add(path+".locationTierMax", "must be >= locationTierMin")
		}
	case StepProcessItem:
		v.ref(path+".inputItemId", s.InputItemID, "item", itemIDs)
		if s.OutputItemID != "" {
			v.ref(path+".outputItemId", s.OutputItemID, "item", itemIDs)
		}
	case StepCraftRecipe:
		v.ref(path+".recipeId", s.RecipeID, "recipe", recipeIDs)
	case StepMarketListItem, StepMarketBuyItem:
		v.ref(path+".itemId", s.ItemID, "item", itemIDs)
	}
}

func (v *validator) rewards(path string, r *Rewards, itemIDs map[string]struct{}) {
	if r == nil {
		v.add(path, "rewards must be an object")
		return
	}
	hasReward := false
	if r.XP < 0 {
		v.add(path+".xp", "expected integer >= 0")
	} else if r.XP > 0 {
		hasReward = true
	}
	if r.Tokens < 0 {
		v.add(path+".tokens", "expected integer >= 0")
	} else if r.Tokens > 0 {
		hasReward = true
	}
	if len(r.Currency) > 0 || len(r.Items) > 0 {
		hasReward = true
	}
	for idx, c := range r.Currency {
		cpath := fmt.Sprintf("%s.currency[%d]", path, idx)
		if !ValidID(c.ID) {
			v.add(cpath+".id", "invalid currency id")
		}
		if c.Amount < 1 {
			v.add(cpath+".amount", "expected integer >= 1")
		}
	}
	for idx, item := range r.Items {
		ipath := fmt.Sprintf("%s.items[%d]", path, idx)
		v.ref(ipath+".itemId", item.ItemID, "item", itemIDs)
		if item.Qty < 1 {
			v.add(ipath+".qty", "expected integer >= 1")
		}
	}
	if !hasReward {
		v.add(path, "must contain at least one non-zero reward")
	}
}

func (v *validator) store(pack StorePack, itemIDs map[string]struct{}) {
	if pack.SchemaVersion != 1 {
		v.add("$store.schemaVersion", "expected 1")
	}
	seen := map[string]struct{}{}
	for idx, entry := range pack.Items {
		path := fmt.Sprintf("$store.items[%d]", idx)
		switch {
		case !ValidID(entry.ItemID):
			v.add(path+".itemId", "invalid item id")
		case contains(seen, entry.ItemID):
			v.add(path+".itemId", "duplicate item '%s'", entry.ItemID)
		case !contains(itemIDs, entry.ItemID):
			v.add(path+".itemId", "unknown item '%s'", entry.ItemID)
		}
		seen[entry.ItemID] = struct{}{}

		v.nonEmpty(path+".name", entry.Name)
		if entry.BuyPrice < 1 {
			v.add(path+".buyPrice", "expected integer >= 1")
		}
		if entry.SellPrice < 1 {
			v.add(path+".sellPrice", "expected integer >= 1")
		}
		if entry.StockLeft() < Unlimited {
			v.add(path+".stock", "expected integer >= -1")
		}
		if entry.Category != "" && !contains(MarketCategories, entry.Category) {
			v.add(path+".category", "expected one of %v", sorted(MarketCategories))
		}
		if entry.PurchaseLimit < 0 {
			v.add(path+".purchaseLimit", "expected integer >= 0")
		}
	}
}

// QuestCycles returns every prerequisite cycle, each as the quest ids along
// the cycle with the first id repeated at the end.
func QuestCycles(quests []Quest) [][]string {
	deps := make(map[string][]string, len(quests))
	order := make([]string, 0, len(quests))
	for _, quest := range quests {
		if !ValidID(quest.ID) {
			continue
		}
		if _, seen := deps[quest.ID]; !seen {
			order = append(order, quest.ID)
		}
		var requires []string
		if quest.Prerequisites != nil {
			requires = quest.Prerequisites.RequiresQuestsCompleted
		}
		deps[quest.ID] = requires
	}

	var (
		cycles  [][]string
		visited = map[string]bool{}
		onStack = map[string]bool{}
		path    []string
	)
	var visit func(id string)
	visit = func(id string) {
		if onStack[id] {
			for i, step := range path {
				if step == id {
					cycle := append(append([]string{}, path[i:]...), id)
					cycles = append(cycles, cycle)
					break
				}
			}
			return
		}
		if visited[id] {
			return
		}
		visited[id] = true
		onStack[id] = true
		path = append(path, id)
		for _, next := range deps[id] {
			visit(next)
		}
		path = path[:len(path)-1]
		onStack[id] = false
	}
	for _, id := range order {
		if !visited[id] {
			visit(id)
		}
	}
	return cycles
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
