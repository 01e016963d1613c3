// Package content loads and validates the RPG content packs (items,
// quests, recipes and the store catalog) the bot serves from disk.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Pack file names without extension. Each is looked up as .json5 first and
// .json second.
const (
	ItemsName   = "rpg.materials"
	QuestsName  = "rpg.quests"
	RecipesName = "rpg.recipes"
	StoreName   = "rpg.store"
)

var (
	ErrMissingPack = errors.New("content: pack file not found")
	ErrNotFound    = errors.New("content: not found")
)

type ItemsPack struct {
	SchemaVersion int    `json:"schemaVersion"`
	Items         []Item `json:"items"`
}

type QuestsPack struct {
	SchemaVersion int     `json:"schemaVersion"`
	Quests        []Quest `json:"quests"`
}

type RecipesPack struct {
	SchemaVersion int      `json:"schemaVersion"`
	Recipes       []Recipe `json:"recipes"`
}

type StorePack struct {
	SchemaVersion int         `json:"schemaVersion"`
	Items         []StoreItem `json:"items"`
}

// Paths are the resolved pack files of a content directory. Store is empty
// when the directory has no store pack.
type Paths struct {
	Items   string
	Quests  string
	Recipes string
	Store   string
}

// ResolvePaths finds the pack files in dir. Items, quests and recipes are
// required.
func ResolvePaths(dir string) (Paths, error) {
	var (
		paths Paths
		err   error
	)
	if paths.Items, err = resolve(dir, ItemsName, true); err != nil {
		return Paths{}, err
	}
	if paths.Quests, err = resolve(dir, QuestsName, true); err != nil {
		return Paths{}, err
	}
	if paths.Recipes, err = resolve(dir, RecipesName, true); err != nil {
		return Paths{}, err
	}
	if paths.Store, err = resolve(dir, StoreName, false); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func resolve(dir, name string, required bool) (string, error) {
	for _, ext := range []string{".json5", ".json"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	if required {
		return "", fmt.Errorf("%w: %s.json5 or %s.json in %s", ErrMissingPack, name, name, dir)
	}
	return "", nil
}

// Pack is a loaded content directory. Store is nil when the directory has
// no store pack.
type Pack struct {
	Dir     string
	Paths   Paths
	Items   ItemsPack
	Quests  QuestsPack
	Recipes RecipesPack
	Store   *StorePack
}

func Load(dir string) (*Pack, error) {
	paths, err := ResolvePaths(dir)
	if err != nil {
		return nil, err
	}
	pack := &Pack{Dir: dir, Paths: paths}
	if err := decodeFile(paths.Items, &pack.Items); err != nil {
		return nil, err
	}
	if err := decodeFile(paths.Quests, &pack.Quests); err != nil {
		return nil, err
	}
	if err := decodeFile(paths.Recipes, &pack.Recipes); err != nil {
		return nil, err
	}
	if paths.Store != "" {
		var store StorePack
		if err := decodeFile(paths.Store, &store); err != nil {
			return nil, err
		}
		pack.Store = &store
	}
	return pack, nil
}

// decodeFile reads a pack file. JSON5 files may carry comments, trailing
// commas and unquoted keys.
func decodeFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if filepath.Ext(path) == ".json5" {
		err = json5.Unmarshal(raw, out)
	} else {
		err = json.Unmarshal(raw, out)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (p *Pack) Item(id string) (Item, error) {
	for _, item := range p.Items.Items {
		if item.ID == id {
			return item, nil
		}
	}
	return Item{}, fmt.Errorf("%w: item %q", ErrNotFound, id)
}

func (p *Pack) Quest(id string) (Quest, error) {
	for _, quest := range p.Quests.Quests {
		if quest.ID == id {
			return quest, nil
		}
	}
	return Quest{}, fmt.Errorf("%w: quest %q", ErrNotFound, id)
}

func (p *Pack) StoreItem(itemID string) (StoreItem, error) {
	if p.Store != nil {
		for _, entry := range p.Store.Items {
			if entry.ItemID == itemID {
				return entry, nil
			}
		}
	}
	return StoreItem{}, fmt.Errorf("%w: store item %q", ErrNotFound, itemID)
}

func (p *Pack) StoreItems() []StoreItem {
	if p.Store == nil {
		return nil
	}
	return p.Store.Items
}
