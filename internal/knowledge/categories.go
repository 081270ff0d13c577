// Package knowledge implements the knowledge base lookup used as the first
// stage of answer resolution.
package knowledge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is one entry of the category table.
type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Table is an ordered, read-only category to keyword table. When a query
// contains keywords of several categories, the earlier category wins.
type Table struct {
	categories []Category
}

var defaultCategories = []Category{
	{Name: "отпуск", Keywords: []string{"отпуск", "отгул", "выходной", "отдых", "vacation"}},
	{Name: "больничный", Keywords: []string{"больничный", "болезнь", "медицина", "здоровье", "лечение"}},
	{Name: "зарплата", Keywords: []string{"зарплата", "оплата", "деньги", "премия", "бонус"}},
	{Name: "документы", Keywords: []string{"документ", "справка", "заявление", "бумаги"}},
	{Name: "рабочее время", Keywords: []string{"время", "график", "смена", "опоздание", "переработка"}},
	{Name: "льготы", Keywords: []string{"льгота", "компенсация", "дополнительные выплаты", "соцпакет"}},
	{Name: "обучение", Keywords: []string{"обучение", "курсы", "тренинг", "развитие", "навыки"}},
	{Name: "оборудование", Keywords: []string{"компьютер", "техника", "оборудование", "ноутбук", "телефон"}},
	{Name: "офис", Keywords: []string{"офис", "рабочее место", "парковка", "столовая", "кухня"}},
	{Name: "коллеги", Keywords: []string{"коллеги", "команда", "сотрудники", "руководитель", "начальник"}},
}

// DefaultTable returns the built-in HR category table.
func DefaultTable() *Table {
	t, _ := NewTable(defaultCategories)
	return t
}

// NewTable builds a table, lowercasing keywords and rejecting duplicates.
func NewTable(categories []Category) (*Table, error) {
	seen := make(map[string]bool, len(categories))
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("category name is empty")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		seen[name] = true

		var kws []string
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		out = append(out, Category{Name: name, Keywords: kws})
	}
	return &Table{categories: out}, nil
}

type tableFile struct {
	Categories []Category `yaml:"categories"`
}

// LoadTable reads a category table from a YAML file of the form
//
//	categories:
//	  - name: отпуск
//	    keywords: [отпуск, отгул]
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse category file: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("category file %s defines no categories", path)
	}
	return NewTable(f.Categories)
}

// Infer returns the first category whose keyword occurs in the lowercased query.
func (t *Table) Infer(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, c := range t.categories {
		for _, kw := range c.Keywords {
			if strings.Contains(q, kw) {
				return c.Name, true
			}
		}
	}
	return "", false
}

// Has reports whether name is a known category.
func (t *Table) Has(name string) bool {
	for _, c := range t.categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Categories returns a copy of the table in order.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Keywords: append([]string(nil), c.Keywords...)}
	}
	return out
}
