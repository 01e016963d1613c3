package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/ishyv/tx-discord-bot-sub008/internal/content"
)

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// parse takes len(names) positional arguments and then the flags after
// them, since flag stops at the first positional argument.
func parse(fs *flag.FlagSet, args []string, names ...string) ([]string, error) {
	want := fs.Name() + " <" + strings.Join(names, "> <") + "> [flags]"
	if len(args) < len(names) {
		return nil, usage(want)
	}
	if err := fs.Parse(args[len(names):]); err != nil {
		return nil, usage(want)
	}
	if fs.NArg() > 0 {
		return nil, usage(fmt.Sprintf("%s: unexpected argument %q", fs.Name(), fs.Arg(0)))
	}
	return args[:len(names)], nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return usage("--" + name + " is required")
	}
	return nil
}

// edit opens an editor, runs fn and prints the message it returns.
func (c *cli) edit(fn func(e *content.Editor) (string, error)) error {
	e, err := content.OpenEditor(c.dir)
	if err != nil {
		return err
	}
	msg, err := fn(e)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, msg)
	return nil
}

// setArgs checks "<id> <path> <value>" and types the value. Values are not
// flag parsed so negative numbers pass through.
func setArgs(cmd string, args []string) (id, path string, value any, err error) {
	if len(args) != 3 {
		return "", "", nil, usage(cmd + " set <id> <path> <value>")
	}
	value, err = content.ParseValue(args[2])
	return args[0], args[1], value, err
}

func (c *cli) items(sub string, args []string) error {
	switch sub {
	case "create":
		return c.createItem(args)
	case "delete":
		if len(args) != 1 {
			return usage("items delete <id>")
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Deleted item '%s'", args[0]), e.DeleteItem(args[0])
		})
	case "set":
		id, path, value, err := setArgs("items", args)
		if err != nil {
			return err
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Updated item '%s' at path '%s'", id, path), e.SetItem(id, path, value)
		})
	case "unset":
		if len(args) != 2 {
			return usage("items unset <id> <path>")
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Removed path '%s' from item '%s'", args[1], args[0]), e.UnsetItem(args[0], args[1])
		})
	}
	return usage(synopsis)
}

func (c *cli) createItem(args []string) error {
	fs := c.flags("items create")
	var item content.NewItem
	fs.StringVar(&item.Name, "name", "", "display name (required)")
	fs.StringVar(&item.Description, "description", "", "description (required)")
	fs.StringVar(&item.Emoji, "emoji", ":package:", "emoji")
	fs.Int64Var(&item.MaxStack, "max-stack", 99, "largest stack")
	fs.Float64Var(&item.Weight, "weight", 1, "weight")
	fs.BoolVar(&item.CanStack, "can-stack", true, "whether the item stacks")
	fs.Int64Var(&item.Value, "value", 1, "base value")
	fs.BoolVar(&item.Tradable, "tradable", true, "whether the market accepts it")
	fs.StringVar(&item.Category, "category", "materials", "market category")
	fs.Int64Var(&item.SuggestedPrice, "suggested-price", 0, "suggested market price (default max(1, value))")
	fs.Int64Var(&item.MinPrice, "min-price", 1, "lowest market price")
	fs.Int64Var(&item.MaxPrice, "max-price", 5000, "highest market price")
	pos, err := parse(fs, args, "id")
	if err != nil {
		return err
	}
	if err := required("name", item.Name); err != nil {
		return err
	}
	if err := required("description", item.Description); err != nil {
		return err
	}
	item.ID = pos[0]
	return c.edit(func(e *content.Editor) (string, error) {
		return fmt.Sprintf("Created item '%s' in %s", item.ID, e.Paths().Items), e.CreateItem(item)
	})
}

func (c *cli) quests(sub string, args []string) error {
	switch sub {
	case "create":
		return c.createQuest(args)
	case "delete":
		if len(args) != 1 {
			return usage("quests delete <id>")
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Deleted quest '%s'", args[0]), e.DeleteQuest(args[0])
		})
	case "set":
		id, path, value, err := setArgs("quests", args)
		if err != nil {
			return err
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Updated quest '%s' at path '%s'", id, path), e.SetQuest(id, path, value)
		})
	case "unset":
		if len(args) != 2 {
			return usage("quests unset <id> <path>")
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Removed path '%s' from quest '%s'", args[1], args[0]), e.UnsetQuest(args[0], args[1])
		})
	case "step":
		if len(args) == 0 {
			return usage("quests step add|remove <questId> [flags]")
		}
		switch args[0] {
		case "add":
			return c.addStep(args[1:])
		case "remove":
			return c.removeStep(args[1:])
		}
		return usage("quests step add|remove <questId> [flags]")
	}
	return usage(synopsis)
}

func (c *cli) createQuest(args []string) error {
	fs := c.flags("quests create")
	var (
		quest    content.NewQuest
		requires string
	)
	fs.StringVar(&quest.Title, "title", "", "title (required)")
	fs.StringVar(&quest.Description, "description", "", "description (required)")
	fs.StringVar(&quest.Icon, "icon", "📜", "icon")
	fs.StringVar(&quest.Difficulty, "difficulty", "easy", "easy, medium, hard, expert or legendary")
	fs.StringVar(&quest.RepeatKind, "repeat-kind", "none", "none, daily, weekly or cooldown")
	fs.Int64Var(&quest.RepeatHours, "repeat-hours", 24, "hours between cooldown repeats")
	fs.StringVar(&quest.Profession, "profession", "", "required profession")
	fs.Int64Var(&quest.MinLevel, "min-level", 0, "required profession level")
	fs.StringVar(&requires, "requires", "", "comma separated quest ids to complete first")
	fs.Int64Var(&quest.Coins, "coins", 100, "coin reward")
	fs.Int64Var(&quest.XP, "xp", 50, "xp reward")
	fs.BoolVar(&quest.Disabled, "disabled", false, "create the quest disabled")
	pos, err := parse(fs, args, "id")
	if err != nil {
		return err
	}
	if err := required("title", quest.Title); err != nil {
		return err
	}
	if err := required("description", quest.Description); err != nil {
		return err
	}
	quest.ID = pos[0]
	quest.Requires = content.SplitList(requires)
	return c.edit(func(e *content.Editor) (string, error) {
		return fmt.Sprintf("Created quest '%s' in %s", quest.ID, e.Paths().Quests), e.CreateQuest(quest)
	})
}

// stepParams collects repeated --param key=value flags.
type stepParams map[string]any

func (p stepParams) String() string { return "" }

func (p stepParams) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", raw)
	}
	parsed, err := content.ParseValue(value)
	if err != nil {
		return err
	}
	p[key] = parsed
	return nil
}

func (c *cli) addStep(args []string) error {
	fs := c.flags("quests step add")
	params := stepParams{}
	kind := fs.String("kind", "", "step kind (required)")
	qty := fs.Int64("qty", 1, "quantity")
	fs.Var(params, "param", "extra step field as key=value, repeatable")
	pos, err := parse(fs, args, "questId")
	if err != nil {
		return err
	}
	if err := required("kind", *kind); err != nil {
		return err
	}
	return c.edit(func(e *content.Editor) (string, error) {
		return fmt.Sprintf("Added step '%s' to quest '%s'", *kind, pos[0]), e.AddStep(pos[0], *kind, *qty, params)
	})
}

func (c *cli) removeStep(args []string) error {
	fs := c.flags("quests step remove")
	index := fs.String("index", "", "step index (required)")
	pos, err := parse(fs, args, "questId")
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(*index)
	if err != nil {
		return usage("--index must be an integer")
	}
	return c.edit(func(e *content.Editor) (string, error) {
		return fmt.Sprintf("Removed step index %d from quest '%s'", n, pos[0]), e.RemoveStep(pos[0], n)
	})
}

func (c *cli) store(sub string, args []string) error {
	switch sub {
	case "add":
		return c.addStoreItem(args)
	case "remove":
		if len(args) != 1 {
			return usage("store remove <itemId>")
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Removed '%s' from store", args[0]), e.RemoveStoreItem(args[0])
		})
	case "set":
		id, path, value, err := setArgs("store", args)
		if err != nil {
			return err
		}
		return c.edit(func(e *content.Editor) (string, error) {
			return fmt.Sprintf("Updated store item '%s' at path '%s'", id, path), e.SetStoreItem(id, path, value)
		})
	}
	return usage(synopsis)
}

func (c *cli) addStoreItem(args []string) error {
	fs := c.flags("store add")
	var entry content.NewStoreItem
	fs.StringVar(&entry.Name, "name", "", "display name (default the item name)")
	fs.Int64Var(&entry.BuyPrice, "buy-price", 0, "buy price (default the item value)")
	fs.Int64Var(&entry.SellPrice, "sell-price", 0, "sell price (default 85% of the buy price)")
	fs.Int64Var(&entry.Stock, "stock", content.Unlimited, "stock, -1 for unlimited")
	fs.BoolVar(&entry.Unavailable, "unavailable", false, "list the entry as unavailable")
	fs.StringVar(&entry.Description, "description", "", "description")
	fs.StringVar(&entry.Category, "category", "", "market category")
	fs.Int64Var(&entry.PurchaseLimit, "purchase-limit", 0, "largest quantity per purchase, 0 for none")
	fs.StringVar(&entry.RequiredRole, "required-role", "", "role needed to buy")
	pos, err := parse(fs, args, "itemId")
	if err != nil {
		return err
	}
	entry.ItemID = pos[0]
	return c.edit(func(e *content.Editor) (string, error) {
		return fmt.Sprintf("Added '%s' to store in %s", entry.ItemID, e.Paths().Store), e.AddStoreItem(entry)
	})
}
