package docs

import (
	"strings"

	"github.com/google/uuid"

	"github.com/mkarpenko/moneta/internal/kv"
)

const (
	budgetPrefix   = "budget/"
	categoryPrefix = "category/"
)

// Budget groups categories for monthly planning.
type Budget struct {
	Meta

	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`

	// Categories lists the Category document ids belonging to this budget.
	Categories []string `json:"categories"`
}

func (*Budget) DocKind() Kind { return KindBudget }

// Category is a single spending bucket inside a budget.
type Category struct {
	Meta

	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

func (*Category) DocKind() Kind { return KindCategory }

// BudgetKey builds the storage key for a budget id.
func BudgetKey(budgetID string) string { return budgetPrefix + budgetID }

// ParseBudgetKey returns the budget id embedded in key.
func ParseBudgetKey(key string) (budgetID string, ok bool) {
	rest, found := strings.CutPrefix(key, budgetPrefix)
	if !found || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// IsBudgetKey reports whether key addresses a Budget document.
func IsBudgetKey(key string) bool {
	_, ok := ParseBudgetKey(key)
	return ok
}

// BudgetRange scans every budget document.
func BudgetRange() kv.Range { return prefixRange(budgetPrefix) }

// CategoryKey builds the storage key for a category under a budget.
func CategoryKey(budgetID, categoryID string) string {
	return categoryPrefix + budgetID + "/" + categoryID
}

// ParseCategoryKey splits a category key into its budget and category ids.
func ParseCategoryKey(key string) (budgetID, categoryID string, ok bool) {
	rest, found := strings.CutPrefix(key, categoryPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsCategoryKey reports whether key addresses a Category document.
func IsCategoryKey(key string) bool {
	_, _, ok := ParseCategoryKey(key)
	return ok
}

// CategoryRange scans every category document.
func CategoryRange() kv.Range { return prefixRange(categoryPrefix) }

// CategoryRangeFor scans the categories of one budget.
func CategoryRangeFor(budgetID string) kv.Range {
	return prefixRange(categoryPrefix + budgetID + "/")
}

// NewBudget constructs a budget with a fresh id.
func NewBudget(name string, sortOrder int) (*Budget, error) {
	b := &Budget{
		Meta:       Meta{ID: BudgetKey(uuid.NewString())},
		Name:       name,
		SortOrder:  sortOrder,
		Categories: []string{},
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks that every referenced category id is a valid Category key
// scoped to this budget.
func (b *Budget) Validate() error {
	if b.Name == "" {
		return validationErr("budget name is required")
	}
	budgetID, ok := ParseBudgetKey(b.ID)
	if !ok {
		return validationErr("invalid budget key %q", b.ID)
	}
	for _, id := range b.Categories {
		catBudget, _, ok := ParseCategoryKey(id)
		if !ok {
			return validationErr("budget %q references non-category id %q", b.ID, id)
		}
		if catBudget != budgetID {
			return validationErr("budget %q references category %q of another budget", b.ID, id)
		}
	}
	return nil
}

// NewCategory constructs a category with a fresh id under the given budget.
func NewCategory(budgetID, name string, amount float64) (*Category, error) {
	c := &Category{
		Meta:   Meta{ID: CategoryKey(budgetID, uuid.NewString())},
		Name:   name,
		Amount: amount,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Category) Validate() error {
	if c.Name == "" {
		return validationErr("category name is required")
	}
	if !IsCategoryKey(c.ID) {
		return validationErr("invalid category key %q", c.ID)
	}
	return nil
}
