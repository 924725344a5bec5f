package notify

import (
	"context"
	"fmt"

	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	parseModeMarkdown = "Markdown"
	displayLayout     = "02.01.2006 15:04"
)

// BusinessLookup resolves the chat a business receives notifications in.
type BusinessLookup interface {
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
}

// TelegramNotifier posts booking events to the owning business's chat.
// A nil sender disables notifications.
type TelegramNotifier struct {
	bot        domain.TelegramSender
	businesses BusinessLookup
	logger     zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, businesses BusinessLookup, logger *zerolog.Logger) *TelegramNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram_notifier").Logger()
	}
	return &TelegramNotifier{bot: bot, businesses: businesses, logger: l}
}

// NewBotAPI returns nil without error for an empty token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Attach subscribes the notifier to booking events on the bus.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	bus.Subscribe(models.EventBookingCreated, n.Handle)
	bus.Subscribe(models.EventBookingCancelled, n.Handle)
}

func (n *TelegramNotifier) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode booking event: %w", err)
	}

	var text string
	switch event.Type {
	case models.EventBookingCreated:
		text = BookingCreatedText(&payload)
	case models.EventBookingCancelled:
		text = BookingCancelledText(&payload)
	default:
		return nil
	}

	return n.notifyBusiness(event.Context(), payload.BusinessID, text)
}

func (n *TelegramNotifier) notifyBusiness(ctx context.Context, businessID, text string) error {
	if n.bot == nil {
		n.logger.Debug().Str("business_id", businessID).Msg("notification skipped (bot disabled)")
		return nil
	}

	business, err := n.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load business %s: %w", businessID, err)
	}
	if business.TelegramChatID == 0 {
		n.logger.Debug().Str("business_id", businessID).Msg("notification skipped (no chat_id)")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(business.TelegramChatID, text)
	msg.ParseMode = parseModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram notification to %d: %w", business.TelegramChatID, err)
	}
	return nil
}

func BookingCreatedText(p *events.BookingEventPayload) string {
	return fmt.Sprintf(
		"*Новая запись*\n\nУслуга: %s\nКлиент: %s (%s)\nВремя: %s - %s",
		p.ServiceName, p.CustomerName, p.CustomerEmail,
		p.StartTime.Format(displayLayout), p.EndTime.Format(models.ClockLayout),
	)
}

func BookingCancelledText(p *events.BookingEventPayload) string {
	return fmt.Sprintf(
		"*Запись отменена*\n\nУслуга: %s\nКлиент: %s\nВремя: %s - %s",
		p.ServiceName, p.CustomerName,
		p.StartTime.Format(displayLayout), p.EndTime.Format(models.ClockLayout),
	)
}
