package model

import (
	"strconv"
	"strings"
)

// Tag represents parsed jorm tags
type Tag struct {
	Ignore       bool
	Column       string
	PrimaryKey   bool
	AutoInc      bool
	Generated    string // never, add or add_update
	Size         int
	NotNull      bool
	AutoTime     bool
	AutoUpdate   bool
	Owned        bool
	Table        string // owned types only
	Prefix       string // owned types only
	Converter    string
	RelationType string
	ForeignKey   string
	References   string
	JoinTable    string
	JoinFK       string
	JoinRef      string
}

// tagKeys maps each tag key to the setter for its value.
var tagKeys = map[string]func(t *Tag, val string){
	"column":       func(t *Tag, v string) { t.Column = v },
	"pk":           func(t *Tag, _ string) { t.PrimaryKey = true },
	"auto":         func(t *Tag, _ string) { t.AutoInc = true },
	"generated":    func(t *Tag, v string) { t.Generated = strings.ToLower(v) },
	"notnull":      func(t *Tag, _ string) { t.NotNull = true },
	"size":         func(t *Tag, v string) { t.Size, _ = strconv.Atoi(v) },
	"auto_time":    func(t *Tag, _ string) { t.AutoTime = true },
	"auto_update":  func(t *Tag, _ string) { t.AutoUpdate = true },
	"owned":        func(t *Tag, _ string) { t.Owned = true },
	"table":        func(t *Tag, v string) { t.Table = v },
	"prefix":       func(t *Tag, v string) { t.Prefix = v },
	"converter":    func(t *Tag, v string) { t.Converter = v },
	"has_one":      func(t *Tag, _ string) { t.RelationType = "has_one" },
	"has_many":     func(t *Tag, _ string) { t.RelationType = "has_many" },
	"belongs_to":   func(t *Tag, _ string) { t.RelationType = "belongs_to" },
	"relation":     func(t *Tag, v string) { t.RelationType = v },
	"fk":           func(t *Tag, v string) { t.ForeignKey = v },
	"foreignkey":   func(t *Tag, v string) { t.ForeignKey = v },
	"references":   func(t *Tag, v string) { t.References = v },
	"join_table":   func(t *Tag, v string) { t.JoinTable = v },
	"join_fk":      func(t *Tag, v string) { t.JoinFK = v },
	"join_ref":     func(t *Tag, v string) { t.JoinRef = v },
	"many2many":    manyToMany,
	"many_to_many": manyToMany,
}

func manyToMany(t *Tag, val string) {
	t.RelationType = "many_to_many"
	if val != "" {
		t.JoinTable = val
	}
}

// ParseTag parses the "jorm" tag string. Options are separated by spaces,
// semicolons or commas; a comma inside parentheses belongs to the value.
// Unknown keys are ignored.
func ParseTag(tagStr string) *Tag {
	tag := &Tag{}
	tagStr = strings.TrimSpace(tagStr)
	if tagStr == "-" {
		tag.Ignore = true
		return tag
	}

	for _, part := range splitTag(tagStr) {
		key, val, _ := strings.Cut(part, ":")
		if set, ok := tagKeys[strings.ToLower(key)]; ok {
			set(tag, strings.TrimSpace(val))
		}
	}
	return tag
}

func splitTag(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		case ',', ';':
			if depth > 0 {
				continue
			}
		case ' ', '\t':
		default:
			continue
		}
		if i > start {
			parts = append(parts, s[start:i])
		}
		start = i + 1
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}
