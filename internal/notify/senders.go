package notify

import (
	"context"
	"errors"
	"fmt"

	"reservo/internal/config"
	"reservo/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers an email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Channel is an optional extra notification path. Its failures never fail the delivery.
type Channel interface {
	Name() string
	Notify(ctx context.Context, b *models.Booking) error
}

// LogSender writes emails to the structured log instead of sending them.
type LogSender struct {
	logger *zerolog.Logger
}

func NewLogSender(logger *zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("message has no recipient")
	}
	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("body_bytes", len(msg.Body)).
		Msg("email notification")
	return nil
}

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts operator alerts to a chat.
type TelegramSender struct {
	bot      telegramAPI
	chatID   int64
	composer *Composer
}

func NewTelegramSender(cfg config.TelegramConfig, composer *Composer) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramSender(bot, cfg.ChatID, composer), nil
}

func newTelegramSender(bot telegramAPI, chatID int64, composer *Composer) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID, composer: composer}
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Notify(ctx context.Context, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, t.composer.OperatorText(b))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

type smsAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender texts the client a short confirmation.
type TwilioSender struct {
	api      smsAPI
	from     string
	composer *Composer
}

func NewTwilioSender(cfg config.TwilioConfig, composer *Composer) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg.From, composer)
}

func newTwilioSender(api smsAPI, from string, composer *Composer) *TwilioSender {
	return &TwilioSender{api: api, from: from, composer: composer}
}

func (s *TwilioSender) Name() string { return "sms" }

func (s *TwilioSender) Notify(ctx context.Context, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.ClientPhone == "" {
		return errors.New("booking has no phone number")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(b.ClientPhone)
	params.SetFrom(s.from)
	params.SetBody(s.composer.SMSText(b))

	if _, err := s.api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}
