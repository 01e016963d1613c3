package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrPath = errors.New("content: bad path")

// token is one step of a dotted path: an object key or an array index.
type token struct {
	key   string
	index int
	isIdx bool
}

func (t token) String() string {
	if t.isIdx {
		return fmt.Sprintf("[%d]", t.index)
	}
	return t.key
}

// parsePath splits paths such as "steps[0].itemId" or "market.minPrice".
func parsePath(path string) ([]token, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrPath)
	}
	var tokens []token
	for _, part := range strings.Split(path, ".") {
		name, indexes := part, ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, indexes = part[:i], part[i:]
		}
		if name == "" && indexes == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrPath, path)
		}
		if name != "" {
			tokens = append(tokens, token{key: name})
		}
		for indexes != "" {
			end := strings.IndexByte(indexes, ']')
			if indexes[0] != '[' || end < 0 {
				return nil, fmt.Errorf("%w: missing ']' in %q", ErrPath, path)
			}
			n, err := strconv.Atoi(indexes[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: invalid index %q in %q", ErrPath, indexes[1:end], path)
			}
			tokens = append(tokens, token{index: n, isIdx: true})
			indexes = indexes[end+1:]
		}
	}
	return tokens, nil
}

// SetPath stores value at path inside root. Missing objects and arrays on
// the way are created; array indexes must already exist.
func SetPath(root map[string]any, path string, value any) error {
	tokens, err := parsePath(path)
	if err != nil {
		return err
	}
	_, err = setAt(root, tokens, value)
	return err
}

func setAt(node any, tokens []token, value any) (any, error) {
	tok, rest := tokens[0], tokens[1:]
	if !tok.isIdx {
		obj, ok := node.(map[string]any)
		if !ok {
			return node, fmt.Errorf("%w: cannot set key %q on a non-object", ErrPath, tok.key)
		}
		if len(rest) == 0 {
			obj[tok.key] = value
			return obj, nil
		}
		child := obj[tok.key]
		if child == nil {
			child = emptyFor(rest[0])
		}
		child, err := setAt(child, rest, value)
		if err != nil {
			return obj, err
		}
		obj[tok.key] = child
		return obj, nil
	}

	arr, ok := node.([]any)
	if !ok {
		return node, fmt.Errorf("%w: cannot index %s into a non-array", ErrPath, tok)
	}
	if tok.index >= len(arr) {
		return arr, fmt.Errorf("%w: index %d out of bounds (size=%d)", ErrPath, tok.index, len(arr))
	}
	if len(rest) == 0 {
		arr[tok.index] = value
		return arr, nil
	}
	child := arr[tok.index]
	if child == nil {
		child = emptyFor(rest[0])
	}
	child, err := setAt(child, rest, value)
	if err != nil {
		return arr, err
	}
	arr[tok.index] = child
	return arr, nil
}

func emptyFor(next token) any {
	if next.isIdx {
		return []any{}
	}
	return map[string]any{}
}

// UnsetPath removes the key or array element at path. The path must exist.
func UnsetPath(root map[string]any, path string) error {
	tokens, err := parsePath(path)
	if err != nil {
		return err
	}
	_, err = unsetAt(root, tokens, path)
	return err
}

func unsetAt(node any, tokens []token, path string) (any, error) {
	tok, rest := tokens[0], tokens[1:]
	if !tok.isIdx {
		obj, ok := node.(map[string]any)
		if !ok {
			return node, fmt.Errorf("%w: %q crosses a non-object", ErrPath, path)
		}
		child, found := obj[tok.key]
		if !found {
			return obj, fmt.Errorf("%w: %q not found", ErrPath, path)
		}
		if len(rest) == 0 {
			delete(obj, tok.key)
			return obj, nil
		}
		child, err := unsetAt(child, rest, path)
		if err != nil {
			return obj, err
		}
		obj[tok.key] = child
		return obj, nil
	}

	arr, ok := node.([]any)
	if !ok {
		return node, fmt.Errorf("%w: %q crosses a non-array", ErrPath, path)
	}
	if tok.index >= len(arr) {
		return arr, fmt.Errorf("%w: index %d out of bounds (size=%d)", ErrPath, tok.index, len(arr))
	}
	if len(rest) == 0 {
		return append(arr[:tok.index:tok.index], arr[tok.index+1:]...), nil
	}
	child, err := unsetAt(arr[tok.index], rest, path)
	if err != nil {
		return arr, err
	}
	arr[tok.index] = child
	return arr, nil
}

var (
	intValue   = regexp.MustCompile(`^-?\d+$`)
	floatValue = regexp.MustCompile(`^-?\d+\.\d+$`)
)

// ParseValue types a command line value: booleans, null, integers and
// decimals by their literal form, JSON for values opening with {, [ or ",
// and a plain string otherwise.
func ParseValue(raw string) (any, error) {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	switch {
	case intValue.MatchString(value):
		return strconv.ParseInt(value, 10, 64)
	case floatValue.MatchString(value):
		return strconv.ParseFloat(value, 64)
	case strings.HasPrefix(value, "{"), strings.HasPrefix(value, "["), strings.HasPrefix(value, `"`):
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return nil, fmt.Errorf("invalid JSON value %q: %w", raw, err)
		}
		return decoded, nil
	}
	return raw, nil
}
