package notifyemail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/repository"
	"github.com/parceltrace/parceltrace/internal/secrets"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
	"github.com/parceltrace/parceltrace/modules/registry"
)

const ModuleKey = "email_notifier"

// Module sends order events as plain-text emails through the configured
// SMTP server. The recipient comes from the subscription config.
type Module struct {
	log       logger.Logger
	repos     *repository.Repositories
	encryptor *secrets.Encryptor

	// sendMail is swapped in tests.
	sendMail func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewModule(log logger.Logger, repos *repository.Repositories, encryptor *secrets.Encryptor) *Module {
	return &Module{
		log:       log,
		repos:     repos,
		encryptor: encryptor,
		sendMail:  smtp.SendMail,
	}
}

func (m *Module) Manifest() *registry.Manifest {
	return &registry.Manifest{
		Key:         ModuleKey,
		Name:        "Email notifier",
		Type:        enum.ModuleTypeNotifier,
		Version:     "1.0.0",
		Description: "Delivers order events by email through the configured SMTP server",
		Priority:    20,
		IsConfigured: func(ctx context.Context) (bool, error) {
			_, err := m.repos.SettingsRepository.GetSMTPConfig(ctx)
			if err != nil {
				return false, nil
			}
			return true, nil
		},
		Notify: m.Notify,
	}
}

func (m *Module) Notify(ctx context.Context, event *models.OrderEvent, config *models.NotificationConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notifyemail.Notify")
	defer span.Finish()
	tracing.TagComponentModule(span)
	tracing.TagUser(span, event.UserID)

	recipient := config.Config.GetString("address")
	if recipient == "" {
		return errors.New("email subscription has no address")
	}

	smtpConfig, err := m.repos.SettingsRepository.GetSMTPConfig(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "no SMTP configuration")
	}

	var auth smtp.Auth
	if smtpConfig.Username != "" {
		password := ""
		if smtpConfig.Password != "" {
			password, err = m.encryptor.Decrypt(smtpConfig.Password)
			if err != nil {
				tracing.TraceErr(span, err)
				return errors.Wrap(err, "failed to decrypt SMTP password")
			}
		}
		auth = smtp.PlainAuth("", smtpConfig.Username, password, smtpConfig.Server)
	}

	subject, body := renderEvent(event)
	msg := buildMessage(smtpConfig.FromAddress, recipient, subject, body)

	addr := fmt.Sprintf("%s:%d", smtpConfig.Server, smtpConfig.Port)
	if err := m.sendMail(addr, auth, smtpConfig.FromAddress, []string{recipient}, msg); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to send notification email")
	}
	return nil
}

func renderEvent(event *models.OrderEvent) (subject, body string) {
	order := event.Order
	vendor := order.Vendor
	if vendor == "" {
		vendor = order.VendorDomain
	}

	switch event.Event {
	case enum.NotificationNewOrder:
		subject = fmt.Sprintf("New order tracked: %s", vendor)
	case enum.NotificationPackageDelivered:
		subject = fmt.Sprintf("Package delivered: %s", vendor)
	default:
		subject = fmt.Sprintf("Tracking update: %s", vendor)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order from %s is now %s.\r\n", vendor, order.Status)
	if order.OrderNumber != "" {
		fmt.Fprintf(&b, "Order number: %s\r\n", order.OrderNumber)
	}
	if order.TrackingNumber != "" {
		fmt.Fprintf(&b, "Tracking number: %s", order.TrackingNumber)
		if order.Carrier != "" {
			fmt.Fprintf(&b, " (%s)", order.Carrier)
		}
		b.WriteString("\r\n")
	}
	if order.EstimatedDelivery != nil {
		fmt.Fprintf(&b, "Estimated delivery: %s\r\n", order.EstimatedDelivery.Format("2006-01-02"))
	}
	return subject, b.String()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", utils.Now().Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
