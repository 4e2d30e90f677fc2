package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/entitlement"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/service"
)

const (
	cbCreate   = "create_bot"
	cbMyBots   = "my_bots"
	cbPremium  = "premium"
	cbHelp     = "help"
	cbBack     = "back_to_main"
	cbDownload = "download_"
	cbDetails  = "bot_details_"

	myBotsLimit      = 5
	descriptionTrunc = 50
)

const (
	textCreate = "🤖 <b>Создание нового бота</b>\n\n" +
		"Опиши, какого бота ты хочешь создать:\n\n" +
		"<i>Например:</i>\n" +
		"• Бот для интернет-магазина с каталогом товаров\n" +
		"• Бот поддержки с системой тикетов\n" +
		"• Новостной бот с рассылками\n" +
		"• Игровой бот с викторинами\n\n" +
		"Просто напиши свое описание в следующем сообщении!"

	textQuotaExceeded = "❌ <b>Лимит исчерпан!</b>\n\n" +
		"Ты использовал все доступные генерации. " +
		"Оформи Premium подписку для продолжения работы!"

	textProviderError = "❌ <b>Сервис генерации временно недоступен</b>\n\nПопробуй еще раз через пару минут."
	textGenericError  = "❌ <b>Произошла ошибка</b>\n\nПопробуй еще раз или обратись в поддержку!"
	textProcessing    = "⏳ Генерирую бота, это может занять до пары минут..."
	textIdleHint      = "Используй команды из меню или /start для начала работы! 🤖"
	textUnknown       = "Неизвестная команда. Используй /help."
	textBotNotFound   = "❌ Бот не найден!"
	textNoBots        = "📋 <b>Мои боты</b>\n\nУ тебя пока нет созданных ботов.\nСоздай свой первый бот!"
	textPackageFailed = "❌ Не удалось собрать архив, попробуй позже."

	textHelp = "ℹ️ <b>Помощь</b>\n\n" +
		"<b>Как создать бота:</b>\n" +
		"1. Нажми \"Создать бота\" или отправь /create\n" +
		"2. Опиши, что должен делать бот\n" +
		"3. Получи готовый код\n" +
		"4. Скачай архив и разверни на сервере\n\n" +
		"<b>Примеры описаний:</b>\n" +
		"• \"Бот для интернет-магазина с каталогом товаров и корзиной\"\n" +
		"• \"Бот поддержки с системой тикетов и FAQ\"\n" +
		"• \"Новостной бот с рассылками и категориями\"\n" +
		"• \"Игровой бот с викторинами и рейтингом\"\n\n" +
		"<b>Команды:</b> /start, /create, /mybots, /premium, /help"
)

func welcomeText(cfg config.Config, u *models.User, firstName string) string {
	premium := "❌"
	if u.IsPremium {
		premium = "✅"
		if u.PremiumExpiresAt != nil {
			premium += " до " + u.PremiumExpiresAt.Format("02.01.2006")
		}
	}
	return fmt.Sprintf("🤖 <b>Добро пожаловать в Bot Creator!</b>\n\n"+
		"Привет, %s! Я помогу тебе создать собственного Telegram бота с помощью ИИ.\n\n"+
		"<b>Лимиты:</b>\n"+
		"• 🆓 Бесплатно: %d генерации\n"+
		"• 💎 Premium: %d генераций в месяц\n\n"+
		"<b>Твоя статистика:</b>\n"+
		"• Использовано бесплатных: %d/%d\n"+
		"• Premium статус: %s\n"+
		"• Осталось генераций: %d\n\n"+
		"Выбери действие:",
		html.EscapeString(firstName),
		cfg.FreeGenerations, cfg.PremiumGenerationsPerMonth,
		u.FreeUsed, u.FreeLimit,
		premium,
		entitlement.Remaining(u),
	)
}

func premiumText(cfg config.Config) string {
	return fmt.Sprintf("💎 <b>Premium подписка</b>\n\n"+
		"<b>Преимущества Premium:</b>\n"+
		"• 🚀 %d генераций в месяц\n"+
		"• ⚡ Приоритетная обработка\n"+
		"• 📞 Приоритетная поддержка\n\n"+
		"<b>Стоимость:</b> %d₽/месяц\n\n"+
		"Для подключения напиши администратору.",
		cfg.PremiumGenerationsPerMonth, cfg.PremiumPrice)
}

func resultText(b *service.Bundle) string {
	return fmt.Sprintf("✅ <b>Бот успешно создан!</b>\n\n"+
		"<b>Название:</b> %s\n"+
		"<b>Описание:</b> %s\n"+
		"<b>Тип:</b> %s\n"+
		"<b>Осталось генераций:</b> %d\n\n"+
		"<b>Что включено:</b>\n"+
		"• Основной код бота\n"+
		"• Конфигурационные файлы\n"+
		"• requirements.txt\n"+
		"• README с инструкциями",
		html.EscapeString(b.Artifact.Name),
		html.EscapeString(b.Description),
		b.Category.String(),
		b.Remaining,
	)
}

func botsText(bots []models.BotArtifact) string {
	var sb strings.Builder
	sb.WriteString("📋 <b>Мои боты</b>\n\n")
	for i, b := range bots {
		fmt.Fprintf(&sb, "%d. %s <b>%s</b>\n", i+1, statusEmoji(b.Status), html.EscapeString(b.Name))
		fmt.Fprintf(&sb, "   %s\n", html.EscapeString(truncate(b.Description, descriptionTrunc)))
		fmt.Fprintf(&sb, "   <i>Создан: %s</i>\n\n", b.CreatedAt.Format("02.01.2006"))
	}
	return sb.String()
}

func detailsText(b *models.BotArtifact) string {
	return fmt.Sprintf("🔧 <b>Детали бота</b>\n\n"+
		"<b>Название:</b> %s\n"+
		"<b>Описание:</b> %s\n"+
		"<b>Статус:</b> %s %s\n"+
		"<b>Создан:</b> %s\n"+
		"<b>Обновлен:</b> %s",
		html.EscapeString(b.Name),
		html.EscapeString(b.Description),
		statusEmoji(b.Status), b.Status,
		b.CreatedAt.Format("02.01.2006 15:04"),
		b.UpdatedAt.Format("02.01.2006 15:04"),
	)
}

// sourceDocument is the generated entry point as sent back to the user.
func sourceDocument(a *models.BotArtifact) []byte {
	return []byte(fmt.Sprintf("# %s\n# %s\n\n%s", a.Name, a.Description, a.Code))
}

func statusEmoji(s models.BotStatus) string {
	switch s {
	case models.BotStatusActive:
		return "✅"
	case models.BotStatusInactive:
		return "⏸️"
	case models.BotStatusReadyForDeployment:
		return "📦"
	case models.BotStatusCreated:
		return "🆕"
	default:
		return "❌"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚀 Создать бота", cbCreate)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📋 Мои боты", cbMyBots)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💎 Premium", cbPremium)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("ℹ️ Помощь", cbHelp)),
	)
}

func backMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Назад", cbBack)),
	)
}

func premiumMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💎 Оформить Premium", cbPremium)),
	)
}

func resultMenu(botID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(botID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📥 Скачать архив", cbDownload+id)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📋 Мои боты", cbMyBots)),
	)
}

func botsMenu(bots []models.BotArtifact) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range bots {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔧 "+b.Name, cbDetails+strconv.FormatInt(b.ID, 10)),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚀 Создать новый", cbCreate)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Назад", cbBack)),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func detailsMenu(botID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(botID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📥 Скачать", cbDownload+id)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("◀️ Назад к списку", cbMyBots)),
	)
}
