package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidSchema is wrapped by every validation failure.
var ErrInvalidSchema = errors.New("schema: invalid")

// maxID is the largest id a header can carry.
const maxID = 1<<16 - 1

// Category is one schema file: a named group of messages sharing a base id.
type Category struct {
	Name     string   `json:"category"`
	Offset   int      `json:"offset"`
	Messages []string `json:"messages"`

	// File is the path the category was loaded from, if any.
	File string `json:"-"`
}

// Message is a message with its assigned id.
type Message struct {
	Name     string
	Category string
	ID       uint16
}

// Set is a validated collection of categories ordered by offset.
type Set struct {
	Categories []Category
	Messages   []Message
}

// Load reads every *.json file in dir and validates them as one set.
func Load(dir string) (*Set, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no schema files in %s", ErrInvalidSchema, dir)
	}
	sort.Strings(paths)

	cats := make([]Category, 0, len(paths))
	for _, p := range paths {
		c, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return NewSet(cats)
}

// LoadFile parses a single schema file.
func LoadFile(path string) (Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Category{}, err
	}
	var c Category
	if err := json.Unmarshal(data, &c); err != nil {
		return Category{}, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, path, err)
	}
	c.File = path
	return c, nil
}

// NewSet validates cats and assigns ids: each message gets its category's
// offset plus its index in the category.
func NewSet(cats []Category) (*Set, error) {
	sorted := make([]Category, len(cats))
	copy(sorted, cats)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	set := &Set{Categories: sorted}
	categories := make(map[string]string, len(sorted))
	messages := make(map[string]string)

	for i, c := range sorted {
		where := c.Name
		if c.File != "" {
			where = c.File
		}
		if !token.IsIdentifier(c.Name) {
			return nil, fmt.Errorf("%w: %s: category name %q is not an identifier", ErrInvalidSchema, where, c.Name)
		}
		if prev, dup := categories[c.Name]; dup {
			return nil, fmt.Errorf("%w: category %q declared in %s and %s", ErrInvalidSchema, c.Name, prev, where)
		}
		categories[c.Name] = where

		if c.Offset < 0 {
			return nil, fmt.Errorf("%w: %s: negative offset %d", ErrInvalidSchema, where, c.Offset)
		}
		if last := c.Offset + len(c.Messages) - 1; last > maxID {
			return nil, fmt.Errorf("%w: %s: id %d exceeds %d", ErrInvalidSchema, where, last, maxID)
		}
		if i > 0 {
			prev := sorted[i-1]
			if end := prev.Offset + len(prev.Messages); end > c.Offset {
				return nil, fmt.Errorf("%w: category %q (ids %d-%d) overlaps %q at %d",
					ErrInvalidSchema, prev.Name, prev.Offset, end-1, c.Name, c.Offset)
			}
		}

		for j, name := range c.Messages {
			if !token.IsIdentifier(name) || !token.IsExported(name) {
				return nil, fmt.Errorf("%w: %s: message name %q is not an exported identifier", ErrInvalidSchema, where, name)
			}
			if prev, dup := messages[name]; dup {
				return nil, fmt.Errorf("%w: message %q declared in %q and %q", ErrInvalidSchema, name, prev, c.Name)
			}
			messages[name] = c.Name
			set.Messages = append(set.Messages, Message{
				Name:     name,
				Category: c.Name,
				ID:       uint16(c.Offset + j),
			})
		}
	}
	return set, nil
}

// Lookup returns the message declared with name.
func (s *Set) Lookup(name string) (Message, bool) {
	for _, m := range s.Messages {
		if m.Name == name {
			return m, true
		}
	}
	return Message{}, false
}

// offsetName is the Go constant naming a category's offset.
func offsetName(category string) string {
	if category == "" {
		return ""
	}
	return strings.ToUpper(category[:1]) + category[1:] + "Offset"
}
