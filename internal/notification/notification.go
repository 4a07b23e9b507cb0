// Package notification renders and sends the order confirmation email.
// Delivery is compensating, never transactional: a failure is reported and
// logged but cannot undo the committed order.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/shopspring/decimal"

	"emporia/internal/platform/config"
	"emporia/internal/shop/models"
)

// EmailSender delivers one message. Fire-and-forget from the checkout
// core's viewpoint.
type EmailSender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// SMTPSender delivers over plain SMTP with optional auth.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth: auth,
		from: cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(s.addr, s.auth, s.from, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogSender writes the message to the log instead of delivering it. Used
// in development when no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	s.logger.InfoContext(ctx, "email (log only)",
		"to", strings.Join(to, ", "),
		"subject", subject,
		"body_bytes", len(htmlBody),
	)
	return nil
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<html>
<body>
<h1>{{.ShopName}}: your order</h1>
<p>Order number: {{.Order.ID}}</p>
<p>Thank you for your order, {{.Order.Billing.FirstName}}.</p>
<table>
{{range .Lines}}<tr><td>{{.Description}}</td><td>{{.Quantity}}</td><td>{{.Total}}</td></tr>
{{end}}<tr><td>Postage</td><td></td><td>{{.Order.Postage}}</td></tr>
<tr><td><strong>Total</strong></td><td></td><td><strong>{{.Total}}</strong></td></tr>
</table>
<p>Delivery to: {{.DeliveryName}}, {{.DeliveryAddress}}</p>
</body>
</html>`))

// Line is one rendered basket row.
type Line struct {
	Description string
	Quantity    int
	Total       decimal.Decimal
}

// ConfirmationMailer renders the confirmation document and sends it to the
// customer and to the shop's own address.
type ConfirmationMailer struct {
	sender    EmailSender
	shopName  string
	shopEmail string
	logger    *slog.Logger
}

func NewConfirmationMailer(sender EmailSender, shopName, shopEmail string, logger *slog.Logger) *ConfirmationMailer {
	return &ConfirmationMailer{
		sender:    sender,
		shopName:  shopName,
		shopEmail: shopEmail,
		logger:    logger,
	}
}

// SendOrderConfirmation renders and delivers the confirmation for a
// committed order. Lines describe the consumed basket's contents.
func (m *ConfirmationMailer) SendOrderConfirmation(ctx context.Context, order *models.Order, lines []Line) error {
	total := order.Postage
	for _, l := range lines {
		total = total.Add(l.Total)
	}

	delivery := order.Billing
	if !order.UseCardHolderContact && order.Delivery != nil {
		delivery = *order.Delivery
	}

	var body bytes.Buffer
	err := confirmationTmpl.Execute(&body, map[string]any{
		"ShopName":        m.shopName,
		"Order":           order,
		"Lines":           lines,
		"Total":           total,
		"DeliveryName":    delivery.FirstName + " " + delivery.LastName,
		"DeliveryAddress": deliveryAddress(delivery),
	})
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}

	subject := fmt.Sprintf("%s: your order", m.shopName)
	to := []string{order.Email, m.shopEmail}
	if err := m.sender.Send(ctx, to, subject, body.String()); err != nil {
		return fmt.Errorf("deliver confirmation for order %d: %w", order.ID, err)
	}
	return nil
}

func deliveryAddress(c models.Contact) string {
	parts := []string{c.Address1}
	if c.Address2 != "" {
		parts = append(parts, c.Address2)
	}
	parts = append(parts, c.Town)
	if c.County != "" {
		parts = append(parts, c.County)
	}
	parts = append(parts, c.Postcode)
	if c.Country != nil {
		parts = append(parts, c.Country.Name)
	}
	return strings.Join(parts, ", ")
}
