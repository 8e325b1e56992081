package telegram

import (
	"context"
	"errors"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
)

const (
	// исследование дороже поиска, поэтому списываем больше
	researchWeight = 3
	historyLimit   = 10
)

type Handler struct {
	bot *Bot
}

func NewHandler(bot *Bot) *Handler {
	return &Handler{bot: bot}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.logger.Info("received message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.Bool("is_command", msg.IsCommand()),
	)

	if !msg.IsCommand() {
		h.handleAsk(ctx, msg, msg.Text)
		return
	}

	args := msg.CommandArguments()
	switch strings.ToLower(msg.Command()) {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "search":
		h.handleSearch(ctx, msg, args)
	case "ask":
		h.handleAsk(ctx, msg, args)
	case "research":
		h.handleResearch(ctx, msg, args)
	case "status":
		h.handleStatus(ctx, msg, args)
	case "cancel":
		h.handleCancel(ctx, msg, args)
	case "tasks":
		h.handleTasks(ctx, msg)
	default:
		h.bot.Send(msg.Chat.ID, "Неизвестная команда. Используйте /help для справки.")
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	h.bot.Send(msg.Chat.ID, "Добро пожаловать! Я ищу информацию и провожу исследования через Valyu.\n\nИспользуйте /help для просмотра доступных команд.")
	h.bot.recordCommand("start", "success")
}

func (h *Handler) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	helpText := `<b>Доступные команды:</b>

/search вопрос - Поиск по вебу и платным источникам
/ask вопрос - Ответ с источниками
/research [fast|lite|heavy] вопрос - Запустить глубокое исследование
/status ID - Статус исследования
/cancel ID - Отменить исследование
/tasks - Ваши последние исследования
/help - Показать эту справку

<b>Режимы исследования:</b>
• fast - быстрый обзор, до 5 минут
• lite - стандартный, до 15 минут
• heavy - подробный отчёт, до 90 минут

Просто отправьте вопрос без команды, и я отвечу как на /ask.

<b>Примеры:</b>
• /search рынок BNPL в Европе
• /research heavy регулирование стейблкоинов в ЕС`

	h.bot.Send(msg.Chat.ID, helpText)
	h.bot.recordCommand("help", "success")
}

func (h *Handler) handleSearch(ctx context.Context, msg *tgbotapi.Message, query string) {
	if !h.allow(msg, 1) {
		return
	}
	h.bot.SendTyping(msg.Chat.ID)

	resp, err := h.bot.query.Search(ctx, normalizeSpaces(query))
	if err != nil {
		h.fail(msg, "search", err)
		return
	}

	h.bot.SendLong(msg.Chat.ID, FormatSearchResults(resp))
	h.bot.recordCommand("search", "success")
}

func (h *Handler) handleAsk(ctx context.Context, msg *tgbotapi.Message, query string) {
	if !h.allow(msg, 1) {
		return
	}
	h.bot.SendTyping(msg.Chat.ID)

	resp, err := h.bot.query.Ask(ctx, normalizeSpaces(query))
	if err != nil {
		h.fail(msg, "ask", err)
		return
	}

	h.bot.SendLong(msg.Chat.ID, FormatAnswer(resp))
	h.bot.recordCommand("ask", "success")
}

func (h *Handler) handleResearch(ctx context.Context, msg *tgbotapi.Message, args string) {
	mode, query := ParseResearchArgs(args)
	if query == "" {
		h.bot.Send(msg.Chat.ID, "Укажите вопрос: /research [fast|lite|heavy] вопрос")
		return
	}
	if err := domain.ValidateQuery(query); err != nil {
		h.fail(msg, "research", err)
		return
	}
	if !h.allow(msg, researchWeight) {
		return
	}

	req := valyu.NewResearchRequest(query)
	if mode != "" {
		req = req.WithMode(mode)
	}

	record, err := h.bot.research.Start(ctx, domain.TelegramOwner(msg.From.ID), req)
	if err != nil {
		h.fail(msg, "research", err)
		return
	}

	h.bot.Send(msg.Chat.ID, FormatTaskCreated(record))
	h.bot.recordCommand("research", "success")

	chatID := msg.Chat.ID
	h.bot.Go(func() {
		h.waitAndReport(ctx, chatID, record.ID)
	})
}

// waitAndReport ждёт завершения задачи и присылает отчёт в чат.
func (h *Handler) waitAndReport(ctx context.Context, chatID int64, id string) {
	snap, err := h.bot.research.Wait(ctx, id, nil)
	switch {
	case err == nil:
		h.bot.SendLong(chatID, FormatResearchResult(snap))
	case ctx.Err() != nil:
		// бот останавливается, задача продолжит работу на стороне Valyu
		return
	case valyu.IsTimeout(err):
		h.bot.Send(chatID, "Исследование <code>"+html.EscapeString(id)+"</code> ещё выполняется. Проверьте позже: /status "+html.EscapeString(id))
	default:
		h.bot.logger.Error("research wait failed", zap.String("task_id", id), zap.Error(err))
		h.bot.Send(chatID, mapErrorToMessage(err))
	}
}

func (h *Handler) handleStatus(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, ok := h.ownTask(ctx, msg, "status", args)
	if !ok {
		return
	}

	snap, err := h.bot.research.Status(ctx, id)
	if err != nil {
		h.fail(msg, "status", err)
		return
	}

	if snap.Status == valyu.StatusCompleted {
		h.bot.SendLong(msg.Chat.ID, FormatResearchResult(snap))
	} else {
		h.bot.Send(msg.Chat.ID, FormatResearchStatus(snap))
	}
	h.bot.recordCommand("status", "success")
}

func (h *Handler) handleCancel(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, ok := h.ownTask(ctx, msg, "cancel", args)
	if !ok {
		return
	}

	res, err := h.bot.research.Cancel(ctx, id)
	if err != nil {
		h.fail(msg, "cancel", err)
		return
	}

	if !res.Success {
		reason := res.Error
		if reason == "" {
			reason = res.Message
		}
		h.bot.Send(msg.Chat.ID, "Не удалось отменить исследование: "+html.EscapeString(reason))
		h.bot.recordCommand("cancel", "rejected")
		return
	}

	h.bot.Send(msg.Chat.ID, "Исследование <code>"+html.EscapeString(id)+"</code> отменено.")
	h.bot.recordCommand("cancel", "success")
}

func (h *Handler) handleTasks(ctx context.Context, msg *tgbotapi.Message) {
	records, err := h.bot.research.History(ctx, domain.TelegramOwner(msg.From.ID), historyLimit)
	if err != nil {
		h.fail(msg, "tasks", err)
		return
	}

	h.bot.Send(msg.Chat.ID, FormatTaskList(records))
	h.bot.recordCommand("tasks", "success")
}

// ownTask достаёт ID из аргументов и проверяет, что задачу запускал этот пользователь.
func (h *Handler) ownTask(ctx context.Context, msg *tgbotapi.Message, command, args string) (string, bool) {
	id := ParseTaskID(args)
	if id == "" {
		h.bot.Send(msg.Chat.ID, "Укажите ID исследования: /"+command+" ID")
		return "", false
	}

	record, err := h.bot.research.Task(ctx, id)
	if err != nil || record.Owner != domain.TelegramOwner(msg.From.ID) {
		if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
			h.bot.logger.Warn("failed to load research task", zap.String("task_id", id), zap.Error(err))
		}
		h.bot.Send(msg.Chat.ID, "Исследование не найдено.")
		h.bot.recordCommand(command, "not_found")
		return "", false
	}
	return id, true
}

func (h *Handler) allow(msg *tgbotapi.Message, weight int) bool {
	if h.bot.limiter.AllowN(msg.From.ID, weight) {
		return true
	}
	h.bot.logger.Warn("rate limit exceeded",
		zap.Int64("user_id", msg.From.ID),
		zap.Time("reset_at", h.bot.limiter.ResetTime(msg.From.ID)),
	)
	h.bot.recordRateLimitHit()
	h.bot.Send(msg.Chat.ID, "Слишком много запросов. Пожалуйста, подождите минуту.")
	return false
}

func (h *Handler) fail(msg *tgbotapi.Message, command string, err error) {
	h.bot.logger.Error("command failed",
		zap.String("command", command),
		zap.Int64("user_id", msg.From.ID),
		zap.Error(err),
	)
	h.bot.recordCommand(command, "error")
	h.bot.Send(msg.Chat.ID, mapErrorToMessage(err))
}

func mapErrorToMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return "Пустой запрос. Введите ваш вопрос."
	case errors.Is(err, domain.ErrQueryTooLong):
		return "Запрос слишком длинный. Максимум 2000 символов."
	case errors.Is(err, domain.ErrTaskNotFound):
		return "Исследование не найдено."
	case errors.Is(err, context.DeadlineExceeded):
		return "Сервис не ответил вовремя. Попробуйте позже."
	}

	switch valyu.KindOf(err) {
	case valyu.KindInvalidRequest:
		var e *valyu.Error
		if errors.As(err, &e) && e.Message != "" {
			return "Некорректный запрос: " + html.EscapeString(e.Message)
		}
		return "Некорректный запрос."
	case valyu.KindRateLimitExceeded:
		return "Сервис перегружен запросами. Попробуйте через минуту."
	case valyu.KindServiceUnavailable, valyu.KindNetwork:
		return "Сервис временно недоступен. Попробуйте позже."
	case valyu.KindTimeout:
		return "Превышено время ожидания."
	case valyu.KindInvalidAPIKey:
		return "Бот настроен неверно. Сообщите администратору."
	default:
		return "Произошла ошибка. Попробуйте позже."
	}
}
