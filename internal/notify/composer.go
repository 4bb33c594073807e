package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"reservo/internal/models"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type templateData struct {
	Booking      *models.Booking
	Business     string
	ContactEmail string
}

// Composer renders booking emails. Client-supplied fields are HTML-escaped.
type Composer struct {
	business      string
	contactEmail  string
	operatorEmail string
	client        *template.Template
	operator      *template.Template
}

func NewComposer(business, contactEmail, operatorEmail string) (*Composer, error) {
	if business == "" {
		business = "Reservo Studio"
	}
	funcs := template.FuncMap{
		"upper": strings.ToUpper,
		"price": func(v float64) string { return fmt.Sprintf("$%.0f", v) },
		"timeLabel": func(t string) string {
			if t == "" {
				return "Full day"
			}
			return t
		},
	}

	client, err := template.New("client").Funcs(funcs).Parse(clientConfirmationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client template: %w", err)
	}
	operator, err := template.New("operator").Funcs(funcs).Parse(operatorAlertTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator template: %w", err)
	}

	return &Composer{
		business:      business,
		contactEmail:  contactEmail,
		operatorEmail: operatorEmail,
		client:        client,
		operator:      operator,
	}, nil
}

// OperatorEmail returns the address operator alerts go to. Empty disables them.
func (c *Composer) OperatorEmail() string {
	return c.operatorEmail
}

func (c *Composer) ClientConfirmation(b *models.Booking) (Message, error) {
	body, err := c.render(c.client, b)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      b.ClientEmail,
		Subject: "Booking Confirmation - " + b.Service.Name,
		Body:    body,
	}, nil
}

func (c *Composer) OperatorAlert(b *models.Booking) (Message, error) {
	body, err := c.render(c.operator, b)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.operatorEmail,
		Subject: "New Booking Request - " + b.Service.Name,
		Body:    body,
	}, nil
}

// SMSText is the short client confirmation sent over SMS.
func (c *Composer) SMSText(b *models.Booking) string {
	when := b.Date
	if b.Time != "" {
		when += " " + b.Time
	}
	return fmt.Sprintf("%s: your %s booking for %s is received. Ref %s",
		c.business, b.Service.Name, when, shortRef(b.ID))
}

// OperatorText is the plain-text alert for chat channels.
func (c *Composer) OperatorText(b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("🔔 New booking request\n\n")
	fmt.Fprintf(&sb, "Service: %s\n", b.Service.Name)
	fmt.Fprintf(&sb, "Date: %s\n", b.Date)
	if b.Time != "" {
		fmt.Fprintf(&sb, "Time: %s\n", b.Time)
	} else {
		sb.WriteString("Time: full day\n")
	}
	fmt.Fprintf(&sb, "Client: %s\n", b.ClientName)
	fmt.Fprintf(&sb, "Email: %s\n", b.ClientEmail)
	fmt.Fprintf(&sb, "Phone: %s\n", b.ClientPhone)
	if b.ClientMessage != "" {
		fmt.Fprintf(&sb, "Message: %s\n", b.ClientMessage)
	}
	fmt.Fprintf(&sb, "\nRef: %s", b.ID)
	return sb.String()
}

func (c *Composer) render(t *template.Template, b *models.Booking) (string, error) {
	var buf bytes.Buffer
	data := templateData{Booking: b, Business: c.business, ContactEmail: c.contactEmail}
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func shortRef(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
