package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/botforge/internal/config"
	"github.com/digkill/botforge/internal/entitlement"
	"github.com/digkill/botforge/internal/models"
	"github.com/digkill/botforge/internal/service"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Accounts interface {
	Ensure(ctx context.Context, p service.Profile) (*models.User, bool, error)
	Bots(ctx context.Context, userID int64, limit int) ([]models.BotArtifact, error)
	Bot(ctx context.Context, userID, botID int64) (*models.BotArtifact, error)
}

type Generator interface {
	Generate(ctx context.Context, userID int64, text string) (*service.Bundle, error)
}

type Packager interface {
	Package(ctx context.Context, botID int64) (*service.PackageResult, error)
}

type Bot struct {
	cfg      config.Config
	api      API
	log      *slog.Logger
	users    Accounts
	generate Generator
	packages Packager
	state    *StateManager
}

func NewBot(cfg config.Config, api API, log *slog.Logger, users Accounts, generate Generator, packages Packager) *Bot {
	return &Bot{
		cfg:      cfg,
		api:      api,
		log:      log,
		users:    users,
		generate: generate,
		packages: packages,
		state:    NewStateManager(),
	}
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started")

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if b.state.Get(msg.Chat.ID).State == StateAwaitingDescription {
		b.handleDescription(ctx, msg)
		return
	}
	b.sendText(msg.Chat.ID, textIdleHint)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.showStart(ctx, chatID, msg.From)
	case "create":
		b.startCreate(ctx, chatID, msg.From)
	case "mybots":
		b.showBots(ctx, chatID, msg.From)
	case "premium":
		b.sendHTML(chatID, premiumText(b.cfg), backMenu())
	case "help":
		b.sendHTML(chatID, textHelp, backMenu())
	default:
		b.sendText(chatID, textUnknown)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Error("callback ack", "err", err)
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	switch data := cb.Data; {
	case data == cbCreate:
		b.startCreate(ctx, chatID, cb.From)
	case data == cbMyBots:
		b.showBots(ctx, chatID, cb.From)
	case data == cbPremium:
		b.sendHTML(chatID, premiumText(b.cfg), backMenu())
	case data == cbHelp:
		b.sendHTML(chatID, textHelp, backMenu())
	case data == cbBack:
		b.showStart(ctx, chatID, cb.From)
	case strings.HasPrefix(data, cbDownload):
		if id, ok := callbackID(data, cbDownload); ok {
			b.download(ctx, chatID, cb.From, id)
		}
	case strings.HasPrefix(data, cbDetails):
		if id, ok := callbackID(data, cbDetails); ok {
			b.showDetails(ctx, chatID, cb.From, id)
		}
	default:
		b.log.Warn("unknown callback", "data", data)
	}
}

func callbackID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	return id, err == nil && id > 0
}

func (b *Bot) showStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, ok := b.ensureUser(ctx, chatID, from)
	if !ok {
		return
	}
	b.sendHTML(chatID, welcomeText(b.cfg, user, user.FirstName), mainMenu())
}

func (b *Bot) startCreate(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, ok := b.ensureUser(ctx, chatID, from)
	if !ok {
		return
	}
	// advisory only, the orchestrator decides under the user lock
	if !entitlement.CanGenerate(user) {
		b.sendHTML(chatID, textQuotaExceeded, premiumMenu())
		return
	}
	b.state.Set(chatID, StateAwaitingDescription)
	b.sendHTML(chatID, textCreate, nil)
}

func (b *Bot) handleDescription(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if strings.TrimSpace(msg.Text) == "" {
		b.sendText(chatID, "Описание не может быть пустым. Напиши, что должен делать бот.")
		return
	}
	if b.state.Take(chatID).State != StateAwaitingDescription {
		b.sendText(chatID, textIdleHint)
		return
	}
	user, ok := b.ensureUser(ctx, chatID, msg.From)
	if !ok {
		return
	}

	b.sendText(chatID, textProcessing)
	bundle, err := b.generate.Generate(ctx, user.ID, msg.Text)
	if err != nil {
		b.reportGenerateError(chatID, user.ID, err)
		return
	}
	b.deliverBundle(chatID, bundle)
}

func (b *Bot) reportGenerateError(chatID, userID int64, err error) {
	var perr *service.ProviderError
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		b.sendHTML(chatID, textQuotaExceeded, premiumMenu())
	case errors.As(err, &perr):
		b.log.Warn("generation provider failure", "user_id", userID, "err", err)
		b.sendHTML(chatID, textProviderError, nil)
	case errors.Is(err, service.ErrInvalidArgument):
		b.sendText(chatID, "Описание не может быть пустым. Напиши, что должен делать бот.")
	default:
		b.log.Error("generate", "user_id", userID, "err", err)
		b.sendHTML(chatID, textGenericError, nil)
	}
}

func (b *Bot) deliverBundle(chatID int64, bundle *service.Bundle) {
	b.sendHTML(chatID, resultText(bundle), resultMenu(bundle.Artifact.ID))

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  bundle.Artifact.Name + ".py",
		Bytes: sourceDocument(bundle.Artifact),
	})
	doc.Caption = "📄 Основной код бота"
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send source document", "bot_id", bundle.Artifact.ID, "err", err)
	}
}

func (b *Bot) showBots(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, ok := b.ensureUser(ctx, chatID, from)
	if !ok {
		return
	}
	bots, err := b.users.Bots(ctx, user.ID, myBotsLimit)
	if err != nil {
		b.log.Error("list bots", "user_id", user.ID, "err", err)
		b.sendHTML(chatID, textGenericError, nil)
		return
	}
	if len(bots) == 0 {
		b.sendHTML(chatID, textNoBots, tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚀 Создать бота", cbCreate)),
		))
		return
	}
	b.sendHTML(chatID, botsText(bots), botsMenu(bots))
}

func (b *Bot) showDetails(ctx context.Context, chatID int64, from *tgbotapi.User, botID int64) {
	user, ok := b.ensureUser(ctx, chatID, from)
	if !ok {
		return
	}
	bot, err := b.users.Bot(ctx, user.ID, botID)
	if err != nil {
		b.reportBotError(chatID, botID, err)
		return
	}
	b.sendHTML(chatID, detailsText(bot), detailsMenu(bot.ID))
}

func (b *Bot) download(ctx context.Context, chatID int64, from *tgbotapi.User, botID int64) {
	user, ok := b.ensureUser(ctx, chatID, from)
	if !ok {
		return
	}
	if _, err := b.users.Bot(ctx, user.ID, botID); err != nil {
		b.reportBotError(chatID, botID, err)
		return
	}

	res, err := b.packages.Package(ctx, botID)
	if err != nil {
		b.log.Error("package bot", "bot_id", botID, "err", err)
		b.sendText(chatID, textPackageFailed)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  res.Bot.Name + ".zip",
		Bytes: res.Archive,
	})
	doc.Caption = "📦 Архив бота: " + res.Bot.Name
	if res.PublicURL != "" {
		doc.Caption += "\n" + res.PublicURL
	}
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send archive", "bot_id", botID, "err", err)
	}
}

func (b *Bot) reportBotError(chatID, botID int64, err error) {
	if errors.Is(err, service.ErrBotNotFound) {
		b.sendText(chatID, textBotNotFound)
		return
	}
	b.log.Error("load bot", "bot_id", botID, "err", err)
	b.sendHTML(chatID, textGenericError, nil)
}

func (b *Bot) ensureUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*models.User, bool) {
	p := service.Profile{TelegramID: chatID}
	if from != nil {
		p = service.Profile{
			TelegramID: from.ID,
			Username:   from.UserName,
			FirstName:  from.FirstName,
			LastName:   from.LastName,
		}
	}
	user, _, err := b.users.Ensure(ctx, p)
	if err != nil {
		b.log.Error("ensure user", "telegram_id", p.TelegramID, "err", err)
		b.sendHTML(chatID, textGenericError, nil)
		return nil, false
	}
	return user, true
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send text", "err", err)
	}
}

func (b *Bot) sendHTML(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "err", err)
	}
}
