// Package prompt classifies a bot request and builds the provider instruction.
package prompt

import "strings"

// Category is the closed set of bot domains with a specialised template.
type Category int

const (
	CategoryGeneral Category = iota
	CategoryEcommerce
	CategorySupport
	CategoryNews
)

func (c Category) String() string {
	switch c {
	case CategoryEcommerce:
		return "ecommerce"
	case CategorySupport:
		return "support"
	case CategoryNews:
		return "news"
	default:
		return "general"
	}
}

type keywordSet struct {
	category Category
	keywords []string
}

// Order is priority; the first set with a hit wins.
var keywordSets = []keywordSet{
	{CategoryEcommerce, []string{"магазин", "товар", "заказ", "корзина", "ecommerce", "e-commerce"}},
	{CategorySupport, []string{"поддержка", "support", "помощь", "тикет", "faq"}},
	{CategoryNews, []string{"новости", "news", "рассылка", "канал"}},
}

// Classify maps a free-text request to a category by case-insensitive
// substring match. It never fails; unmatched prompts are general.
func Classify(text string) Category {
	lower := strings.ToLower(text)
	for _, set := range keywordSets {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.category
			}
		}
	}
	return CategoryGeneral
}
