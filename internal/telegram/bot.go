package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kitbuilder587/valyu-go"
	"github.com/kitbuilder587/valyu-go/internal/domain"
	"github.com/kitbuilder587/valyu-go/internal/metrics"
	"github.com/kitbuilder587/valyu-go/internal/ratelimit"
)

type QueryService interface {
	Search(ctx context.Context, query string) (*valyu.SearchResponse, error)
	Ask(ctx context.Context, query string) (*valyu.AnswerResponse, error)
}

type ResearchService interface {
	Start(ctx context.Context, owner string, req valyu.ResearchCreateRequest) (*domain.TaskRecord, error)
	Status(ctx context.Context, id string) (*valyu.ResearchStatus, error)
	Wait(ctx context.Context, id string, onStatus func(*valyu.ResearchStatus)) (*valyu.ResearchStatus, error)
	Cancel(ctx context.Context, id string) (*valyu.OperationResult, error)
	Task(ctx context.Context, id string) (*domain.TaskRecord, error)
	History(ctx context.Context, owner string, limit int) ([]domain.TaskRecord, error)
}

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type BotConfig struct {
	Token             string
	Debug             bool
	RequestsPerMinute int
}

type Bot struct {
	client   *tgbotapi.BotAPI
	api      Sender
	query    QueryService
	research ResearchService
	logger   *zap.Logger
	metrics  *metrics.Metrics
	handler  *Handler
	limiter  *ratelimit.Limiter

	// wg ждёт и обработчики, и фоновые ожидания задач
	wg sync.WaitGroup
}

func New(cfg BotConfig, query QueryService, research ResearchService, logger *zap.Logger, m *metrics.Metrics) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	client.Debug = cfg.Debug

	bot := &Bot{
		client:   client,
		api:      client,
		query:    query,
		research: research,
		logger:   logger,
		metrics:  m,
		limiter: ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RequestsPerMinute,
		}),
	}
	bot.handler = NewHandler(bot)

	logger.Info("telegram bot authorized",
		zap.String("username", client.Self.UserName),
	)

	return bot, nil
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)

	b.logger.Info("bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bot stopping, waiting for handlers to finish")
			b.client.StopReceivingUpdates()
			b.wg.Wait()
			b.limiter.Stop()
			b.logger.Info("all handlers finished")
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			chatID := int64(0)
			if update.Message != nil && update.Message.Chat != nil {
				chatID = update.Message.Chat.ID
			}
			b.logger.Error("panic in update handler",
				zap.Any("panic", r),
				zap.Int64("chat_id", chatID),
			)
			b.recordCommand("message", "panic")
		}
	}()

	b.handler.HandleMessage(ctx, update.Message)

	b.logger.Debug("update handled",
		zap.Int("update_id", update.UpdateID),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// Go runs fn in the background; Run waits for it on shutdown.
func (b *Bot) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *Bot) Send(chatID int64, text string) error {
	if b.api == nil {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

// SendLong splits text to fit the telegram message limit.
func (b *Bot) SendLong(chatID int64, text string) {
	for _, part := range SplitMessage(text, maxMessageLength) {
		if err := b.Send(chatID, part); err != nil {
			b.logger.Error("failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
		}
	}
}

func (b *Bot) SendTyping(chatID int64) {
	if b.api == nil {
		return
	}
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.api.Send(action)
}

func (b *Bot) recordCommand(command, status string) {
	if b.metrics != nil {
		b.metrics.RecordCommand(command, status)
	}
}

func (b *Bot) recordRateLimitHit() {
	if b.metrics != nil {
		b.metrics.RecordRateLimitHit()
	}
}
