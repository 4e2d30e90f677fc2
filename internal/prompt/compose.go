package prompt

import "strings"

const baseInstruction = "Ты - эксперт по созданию Telegram ботов. Создай профессиональный код бота на Python с использованием библиотеки python-telegram-bot.\n" +
	"\n" +
	"Требования:\n" +
	"1. Используй современный синтаксис python-telegram-bot (версия 20+)\n" +
	"2. Добавь обработку ошибок\n" +
	"3. Включи логирование\n" +
	"4. Создай структурированный код с классами\n" +
	"5. Добавь конфигурационный файл\n" +
	"6. Включи requirements.txt\n" +
	"7. Добавь README.md с инструкциями\n" +
	"\n" +
	"Перед кодом кратко опиши бота в одной-трех строках.\n" +
	"\n" +
	"Верни код в формате:\n" +
	"```python\n" +
	"# main.py\n" +
	"[код бота]\n" +
	"```\n" +
	"\n" +
	"```python\n" +
	"# config.py\n" +
	"[конфигурация]\n" +
	"```\n" +
	"\n" +
	"```txt\n" +
	"# requirements.txt\n" +
	"[зависимости]\n" +
	"```\n" +
	"\n" +
	"```markdown\n" +
	"# README.md\n" +
	"[инструкции]\n" +
	"```\n"

// Compose returns the system instruction for the given category: the fixed
// base block followed by the category addendum, if any.
func Compose(c Category) string {
	features := Addendum(c)
	if len(features) == 0 {
		return baseInstruction
	}

	var b strings.Builder
	b.WriteString(baseInstruction)
	b.WriteString("\nСпециально для ")
	b.WriteString(c.String())
	b.WriteString(" бота добавь:\n")
	for _, f := range features {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	return b.String()
}

// Addendum lists the domain features requested for a category.
func Addendum(c Category) []string {
	switch c {
	case CategoryEcommerce:
		return []string{"Каталог товаров", "Корзину", "Обработку заказов", "Интеграцию с платежными системами"}
	case CategorySupport:
		return []string{"Систему тикетов", "FAQ", "Переадресацию к операторам", "Базу знаний"}
	case CategoryNews:
		return []string{"Парсинг новостей", "Категории", "Подписки", "Рассылки"}
	case CategoryGeneral:
		return nil
	}
	return nil
}
