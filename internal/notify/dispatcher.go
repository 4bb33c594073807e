package notify

import (
	"context"
	"errors"

	"reservo/internal/domain"
	"reservo/internal/metrics"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher sends every notification of a new booking.
type Dispatcher struct {
	composer *Composer
	mail     Sender
	channels []Channel
	logger   *zerolog.Logger
}

func NewDispatcher(composer *Composer, mail Sender, logger *zerolog.Logger, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		composer: composer,
		mail:     mail,
		channels: channels,
		logger:   logger,
	}
}

// Delivery keys of the messages of one booking notification.
const (
	keyClientMail   = "mail:client"
	keyOperatorMail = "mail:operator"
	keyChannel      = "channel:"
)

// NotifyBooking emails the client and the operator, then tries the optional channels.
// Messages already recorded in progress are skipped, so a retry only resends what failed.
// Only email failures are returned; the caller decides whether to retry. progress may be nil.
func (d *Dispatcher) NotifyBooking(ctx context.Context, b *models.Booking, progress domain.DeliveryProgress) error {
	var errs []error

	if !delivered(progress, keyClientMail) {
		clientMsg, err := d.composer.ClientConfirmation(b)
		if err != nil {
			return err
		}
		errs = append(errs, d.deliver(ctx, b, progress, keyClientMail, func() error {
			return d.sendMail(ctx, b, clientMsg)
		}))
	}

	if d.composer.OperatorEmail() != "" && !delivered(progress, keyOperatorMail) {
		operatorMsg, err := d.composer.OperatorAlert(b)
		if err != nil {
			return err
		}
		errs = append(errs, d.deliver(ctx, b, progress, keyOperatorMail, func() error {
			return d.sendMail(ctx, b, operatorMsg)
		}))
	}

	for _, ch := range d.channels {
		key := keyChannel + ch.Name()
		if delivered(progress, key) {
			continue
		}
		err := d.deliver(ctx, b, progress, key, func() error { return ch.Notify(ctx, b) })
		if err != nil {
			metrics.IncNotification(ch.Name(), "error")
			d.logger.Warn().Err(err).
				Str("channel", ch.Name()).
				Str("booking_id", b.ID).
				Msg("notification channel failed")
			continue
		}
		metrics.IncNotification(ch.Name(), "success")
	}

	return errors.Join(errs...)
}

// deliver runs send and records key once it succeeded.
func (d *Dispatcher) deliver(ctx context.Context, b *models.Booking, progress domain.DeliveryProgress, key string, send func() error) error {
	if err := send(); err != nil {
		return err
	}
	if progress == nil {
		return nil
	}
	if err := progress.MarkDelivered(ctx, key); err != nil {
		// the message is out; a retry may repeat it
		d.logger.Warn().Err(err).Str("booking_id", b.ID).Str("delivery", key).Msg("failed to record delivery")
	}
	return nil
}

func delivered(progress domain.DeliveryProgress, key string) bool {
	return progress != nil && progress.Delivered(key)
}

func (d *Dispatcher) sendMail(ctx context.Context, b *models.Booking, msg Message) error {
	if err := d.mail.Send(ctx, msg); err != nil {
		metrics.IncNotification("mail", "error")
		d.logger.Error().Err(err).
			Str("booking_id", b.ID).
			Str("to", msg.To).
			Str("subject", msg.Subject).
			Msg("failed to send email")
		return err
	}
	metrics.IncNotification("mail", "success")
	return nil
}
