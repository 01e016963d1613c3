// Command rpgcontent inspects, validates and edits the RPG content packs.
//
//	rpgcontent [-dir content] validate
//	rpgcontent [-dir content] items list|show|create|delete|set|unset
//	rpgcontent [-dir content] quests list|show|create|delete|set|unset|step add|step remove
//	rpgcontent [-dir content] store list|show|add|remove|set
//
// Every edit is validated against the whole pack before the file is
// rewritten.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ishyv/tx-discord-bot-sub008/internal/content"
)

var errUsage = errors.New("usage")

const synopsis = `rpgcontent [-dir path] <command>
  validate
  items list | show <id> | create <id> --name N --description D [flags] | delete <id>
  items set <id> <path> <value> | unset <id> <path>
  quests list | show <id> | create <id> --title T --description D [flags] | delete <id>
  quests set <id> <path> <value> | unset <id> <path>
  quests step add <questId> --kind K [--qty N] [--param key=value]...
  quests step remove <questId> --index N
  store list | show <itemId> | add <itemId> [flags] | remove <itemId>
  store set <itemId> <path> <value>`

func usage(detail string) error {
	return fmt.Errorf("%w: %s", errUsage, detail)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cli struct {
	dir    string
	out    io.Writer
	errOut io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rpgcontent", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", envOr("CONTENT_DIR", "content"), "content pack directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage(synopsis))
		return 2
	}

	c := &cli{dir: *dir, out: stdout, errOut: stderr}
	var verr *content.ValidationError
	switch err := c.dispatch(rest); {
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		return 2
	case errors.Is(err, errInvalid):
		return 1
	case errors.As(err, &verr):
		fmt.Fprintln(stderr, "Error: validation failed, nothing was written:")
		for _, issue := range verr.Issues {
			fmt.Fprintf(stderr, " - %s\n", issue)
		}
		return 1
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var errInvalid = errors.New("validation failed")

func (c *cli) dispatch(args []string) error {
	cmd, rest := args[0], args[1:]
	if cmd == "validate" {
		pack, err := content.Load(c.dir)
		if err != nil {
			return err
		}
		return validate(pack, c.out)
	}
	if len(rest) == 0 {
		return usage(synopsis)
	}

	sub, rest := rest[0], rest[1:]
	switch sub {
	case "list", "show":
		pack, err := content.Load(c.dir)
		if err != nil {
			return err
		}
		if sub == "show" {
			if len(rest) != 1 {
				return usage(cmd + " show <id>")
			}
			return show(pack, cmd, rest[0], c.out)
		}
		switch cmd {
		case "items":
			return listItems(pack, c.out)
		case "quests":
			return listQuests(pack, c.out)
		case "store":
			return listStore(pack, c.out)
		}
		return usage(synopsis)
	}

	switch cmd {
	case "items":
		return c.items(sub, rest)
	case "quests":
		return c.quests(sub, rest)
	case "store":
		return c.store(sub, rest)
	}
	return usage(synopsis)
}

func validate(pack *content.Pack, w io.Writer) error {
	if issues := pack.Validate(); len(issues) > 0 {
		fmt.Fprintln(w, "Validation failed:")
		for _, issue := range issues {
			fmt.Fprintf(w, " - %s\n", issue)
		}
		return errInvalid
	}
	fmt.Fprintf(w, "OK: %d quests, %d items, %d recipes\n", len(pack.Quests.Quests), len(pack.Items.Items), len(pack.Recipes.Recipes))
	return nil
}

func listItems(pack *content.Pack, w io.Writer) error {
	if len(pack.Items.Items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return nil
	}
	for _, item := range pack.Items.Items {
		category := "-"
		if item.Market != nil && item.Market.Category != "" {
			category = item.Market.Category
		}
		fmt.Fprintf(w, "%-30s | value=%5d | category=%-11s | %s\n", item.ID, item.Value, category, item.Name)
	}
	return nil
}

func listQuests(pack *content.Pack, w io.Writer) error {
	if len(pack.Quests.Quests) == 0 {
		fmt.Fprintln(w, "No quests found.")
		return nil
	}
	for _, quest := range pack.Quests.Quests {
		fmt.Fprintf(w, "%-35s | %-9s | steps=%2d | enabled=%t | %s\n",
			quest.ID, quest.Level(), len(quest.Steps), quest.IsEnabled(), quest.Title)
	}
	return nil
}

func listStore(pack *content.Pack, w io.Writer) error {
	entries := pack.StoreItems()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No store items found.")
		return nil
	}
	for _, entry := range entries {
		stock := "∞"
		if left := entry.StockLeft(); left >= 0 {
			stock = fmt.Sprint(left)
		}
		status := "✓"
		if !entry.IsAvailable() {
			status = "✗"
		}
		fmt.Fprintf(w, "%-25s | buy=%6d | sell=%6d | stock=%4s | %s | %s\n",
			entry.ItemID, entry.BuyPrice, entry.SellPrice, stock, status, entry.Name)
	}
	return nil
}

func show(pack *content.Pack, kind, id string, w io.Writer) error {
	var (
		value any
		err   error
	)
	switch kind {
	case "items":
		value, err = pack.Item(id)
	case "quests":
		value, err = pack.Quest(id)
	case "store":
		value, err = pack.StoreItem(id)
	default:
		return usage(synopsis)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(value)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
