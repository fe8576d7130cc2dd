// Package langdir maps language codes to display names.
package langdir

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var builtin []byte

type Language struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

type file struct {
	Languages []Language `yaml:"languages"`
}

// Directory is immutable once built and safe for concurrent use.
type Directory struct {
	list   []Language
	byCode map[string]Language
}

// Parse builds a directory from a YAML document with a top-level
// "languages" list. Codes keep their listed spelling and are indexed by
// canonical form.
func Parse(data []byte) (*Directory, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("langdir: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, errors.New("langdir: no languages")
	}
	d := &Directory{byCode: make(map[string]Language, len(f.Languages))}
	for _, l := range f.Languages {
		if l.Code == "" || l.Name == "" {
			return nil, fmt.Errorf("langdir: incomplete entry %+v", l)
		}
		l.Code = strings.TrimSpace(l.Code)
		key := Canonical(l.Code)
		if _, dup := d.byCode[key]; dup {
			return nil, fmt.Errorf("langdir: duplicate code %q", l.Code)
		}
		d.byCode[key] = l
		d.list = append(d.list, l)
	}
	sort.Slice(d.list, func(i, j int) bool { return d.list[i].Code < d.list[j].Code })
	return d, nil
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
)

// Default returns the built-in directory.
func Default() *Directory {
	defaultOnce.Do(func() {
		d, err := Parse(builtin)
		if err != nil {
			panic(err)
		}
		defaultDir = d
	})
	return defaultDir
}

// Canonical returns the BCP-47 canonical form of code, or code unchanged
// when it does not parse.
func Canonical(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

func (d *Directory) Name(code string) (string, bool) {
	l, ok := d.byCode[Canonical(code)]
	return l.Name, ok
}

// Normalize returns the code to store for a member. A code that matches a
// directory entry up to case takes the directory spelling; anything else,
// including deprecated aliases such as "iw", is kept as sent.
func (d *Directory) Normalize(code string) string {
	code = strings.TrimSpace(code)
	if l, ok := d.byCode[Canonical(code)]; ok && strings.EqualFold(l.Code, code) {
		return l.Code
	}
	return code
}

func (d *Directory) Supported(code string) bool {
	_, ok := d.Name(code)
	return ok
}

// All returns a copy of the directory sorted by code.
func (d *Directory) All() []Language {
	out := make([]Language, len(d.list))
	copy(out, d.list)
	return out
}

func (d *Directory) Len() int { return len(d.list) }
