package content

// Item is a static item definition from rpg.materials.json.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Emoji       string   `json:"emoji,omitempty"`
	MaxStack    *int64   `json:"maxStack,omitempty"`
	Weight      *float64 `json:"weight,omitempty"`
	CanStack    *bool    `json:"canStack,omitempty"`
	Value       int64    `json:"value,omitempty"`
	Market      *Market  `json:"market,omitempty"`
}

const (
	defaultMaxStack = 99
	defaultEmoji    = ":package:"
)

// Stack is the largest quantity of the item one inventory slot holds.
// Instance items never stack.
func (i Item) Stack() int64 {
	if !i.Stackable() {
		return 1
	}
	if i.MaxStack == nil {
		return defaultMaxStack
	}
	return *i.MaxStack
}

func (i Item) Stackable() bool {
	return i.CanStack == nil || *i.CanStack
}

func (i Item) Icon() string {
	if i.Emoji == "" {
		return defaultEmoji
	}
	return i.Emoji
}

type Market struct {
	Tradable       *bool  `json:"tradable,omitempty"`
	Category       string `json:"category,omitempty"`
	SuggestedPrice *int64 `json:"suggestedPrice,omitempty"`
	MinPrice       *int64 `json:"minPrice,omitempty"`
	MaxPrice       *int64 `json:"maxPrice,omitempty"`
}

type Recipe struct {
	ID string `json:"id"`
}

// StoreItem is a catalog entry from rpg.store.json. It prices an item of
// the materials pack.
type StoreItem struct {
	ItemID        string `json:"itemId"`
	Name          string `json:"name"`
	BuyPrice      int64  `json:"buyPrice"`
	SellPrice     int64  `json:"sellPrice"`
	Stock         *int64 `json:"stock,omitempty"`
	Available     *bool  `json:"available,omitempty"`
	Description   string `json:"description,omitempty"`
	Category      string `json:"category,omitempty"`
	PurchaseLimit int64  `json:"purchaseLimit,omitempty"`
	RequiredRole  string `json:"requiredRole,omitempty"`
}

// Unlimited is the stock value of items that never run out.
const Unlimited = -1

func (s StoreItem) StockLeft() int64 {
	if s.Stock == nil {
		return Unlimited
	}
	return *s.Stock
}

func (s StoreItem) IsAvailable() bool {
	return s.Available == nil || *s.Available
}

type Quest struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Icon          string         `json:"icon,omitempty"`
	Difficulty    string         `json:"difficulty,omitempty"`
	Enabled       *bool          `json:"enabled,omitempty"`
	Repeat        *Repeat        `json:"repeat,omitempty"`
	Prerequisites *Prerequisites `json:"prerequisites,omitempty"`
	Steps         []Step         `json:"steps"`
	Rewards       *Rewards       `json:"rewards,omitempty"`
}

func (q Quest) IsEnabled() bool {
	return q.Enabled == nil || *q.Enabled
}

func (q Quest) Level() string {
	if q.Difficulty == "" {
		return "easy"
	}
	return q.Difficulty
}

type Repeat struct {
	Kind  string `json:"kind"`
	Hours *int64 `json:"hours,omitempty"`
}

type Prerequisites struct {
	Profession              string   `json:"profession,omitempty"`
	MinLevel                *int64   `json:"minLevel,omitempty"`
	RequiresQuestsCompleted []string `json:"requiresQuestsCompleted,omitempty"`
}

type Rewards struct {
	XP       int64            `json:"xp,omitempty"`
	Tokens   int64            `json:"tokens,omitempty"`
	Currency []CurrencyReward `json:"currency,omitempty"`
	Items    []ItemReward     `json:"items,omitempty"`
}

type CurrencyReward struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

type ItemReward struct {
	ItemID string `json:"itemId"`
	Qty    int64  `json:"qty"`
}

// Step is one quest objective. Kind selects which of the optional fields
// apply.
type Step struct {
	Kind string `json:"kind"`
	Qty  int64  `json:"qty"`

	// gather_item
	Action          string `json:"action,omitempty"`
	LocationTierMin *int64 `json:"locationTierMin,omitempty"`
	LocationTierMax *int64 `json:"locationTierMax,omitempty"`
	ToolTierMin     *int64 `json:"toolTierMin,omitempty"`

	// gather_item, market_list_item, market_buy_item
	ItemID string `json:"itemId,omitempty"`

	// process_item
	InputItemID  string `json:"inputItemId,omitempty"`
	OutputItemID string `json:"outputItemId,omitempty"`
	SuccessOnly  *bool  `json:"successOnly,omitempty"`

	// craft_recipe
	RecipeID string `json:"recipeId,omitempty"`
}

const (
	StepGatherItem     = "gather_item"
	StepProcessItem    = "process_item"
	StepCraftRecipe    = "craft_recipe"
	StepMarketListItem = "market_list_item"
	StepMarketBuyItem  = "market_buy_item"
	StepFightWin       = "fight_win"
)

var (
	Difficulties     = set("easy", "medium", "hard", "expert", "legendary")
	RepeatKinds      = set("none", "daily", "weekly", "cooldown")
	Professions      = set("miner", "lumber")
	StepKinds        = set(StepGatherItem, StepProcessItem, StepCraftRecipe, StepMarketListItem, StepMarketBuyItem, StepFightWin)
	GatherActions    = set("mine", "forest")
	MarketCategories = set("materials", "consumables", "components", "gear", "tools")
)

const (
	tierMin = 1
	tierMax = 4
)

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
