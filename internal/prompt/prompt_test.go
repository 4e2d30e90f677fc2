package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   Category
	}{
		{"ecommerce russian", "Бот для интернет-магазина с каталогом товаров", CategoryEcommerce},
		{"ecommerce mixed case", "An E-Commerce helper", CategoryEcommerce},
		{"cart", "Нужна КОРЗИНА и оплата", CategoryEcommerce},
		{"support", "Бот поддержки с системой тикетов", CategorySupport},
		{"faq upper", "FAQ bot", CategorySupport},
		{"news", "Новостной канал с рассылками", CategoryNews},
		{"news english", "Daily NEWS digest", CategoryNews},
		{"general", "Игровой бот с викторинами", CategoryGeneral},
		{"empty", "", CategoryGeneral},
		{"ecommerce beats support", "support for my shop заказ", CategoryEcommerce},
		{"support beats news", "помощь по новости", CategorySupport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.prompt))
		})
	}
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "ecommerce", CategoryEcommerce.String())
	assert.Equal(t, "support", CategorySupport.String())
	assert.Equal(t, "news", CategoryNews.String())
	assert.Equal(t, "general", CategoryGeneral.String())
	assert.Equal(t, "general", Category(99).String())
}

func TestComposeContainsOutputContract(t *testing.T) {
	for _, c := range []Category{CategoryGeneral, CategoryEcommerce, CategorySupport, CategoryNews} {
		t.Run(c.String(), func(t *testing.T) {
			text := Compose(c)
			assert.True(t, strings.HasPrefix(text, baseInstruction))
			for _, section := range []string{"# main.py", "# config.py", "# requirements.txt", "# README.md"} {
				assert.Contains(t, text, section)
			}
			assert.Contains(t, text, "```python")
			assert.Contains(t, text, "```txt")
			assert.Contains(t, text, "```markdown")
		})
	}
}

func TestComposeAddendum(t *testing.T) {
	assert.Equal(t, baseInstruction, Compose(CategoryGeneral))

	ecommerce := Compose(CategoryEcommerce)
	assert.Contains(t, ecommerce, "Специально для ecommerce бота добавь:")
	assert.Contains(t, ecommerce, "- Каталог товаров\n")
	assert.Contains(t, ecommerce, "- Интеграцию с платежными системами\n")

	support := Compose(CategorySupport)
	assert.Contains(t, support, "- Систему тикетов\n")
	assert.NotContains(t, support, "Каталог товаров")

	news := Compose(CategoryNews)
	assert.Contains(t, news, "- Рассылки\n")
}

func TestComposeDeterministic(t *testing.T) {
	assert.Equal(t, Compose(CategoryNews), Compose(CategoryNews))
}
