package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/avillalba/watertariff/internal/storage"
)

type Service struct {
	storage storage.Storage
}

func NewService(s storage.Storage) *Service {
	return &Service{storage: s}
}

func (s *Service) GetConfig(ctx context.Context) (*storage.EmailConfig, error) {
	return s.storage.GetEmailConfig(ctx)
}

func (s *Service) SaveConfig(ctx context.Context, cfg storage.EmailConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	return s.storage.SaveEmailConfig(ctx, cfg)
}

// SendBillNotice emails a composed bill summary to the meter owner.
func (s *Service) SendBillNotice(ctx context.Context, m storage.Meter, b storage.Bill) error {
	if m.Email == "" {
		return fmt.Errorf("meter %s has no email on file", m.Code)
	}
	subject := fmt.Sprintf("Planilla de agua %s - medidor %s", b.Period, m.Code)
	body := renderBillNotice(m, b)
	return s.SendEmail(ctx, m.Email, subject, body)
}

func renderBillNotice(m storage.Meter, b storage.Bill) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<h3>Planilla %s</h3>", b.Period)
	fmt.Fprintf(&buf, "<p>Medidor %s (%s)</p>", m.Code, m.OwnerName)
	fmt.Fprintf(&buf, "<p>Consumo: %.2f m&sup3;</p>", b.Consumption)
	fmt.Fprintf(&buf, "<table>")
	rows := []struct {
		label  string
		amount float64
	}{
		{"Tarifa base", b.BaseAmount},
		{"Rango 16-20", b.Range16To20},
		{"Rango 21-25", b.Range21To25},
		{"Rango 26+", b.Range26Plus},
		{"Deuda anterior", b.PreviousDebt},
		{"Multas reuniones", b.FinesReuniones},
		{"Multas mingas", b.FinesMingas},
		{"Mora", b.MoraAmount},
		{"Huerta", b.GardenAmount},
	}
	for _, r := range rows {
		if r.amount == 0 {
			continue
		}
		fmt.Fprintf(&buf, "<tr><td>%s</td><td>%.2f</td></tr>", r.label, r.amount)
	}
	fmt.Fprintf(&buf, "<tr><td><b>Total</b></td><td><b>%.2f</b></td></tr>", b.TotalAmount)
	fmt.Fprintf(&buf, "</table>")
	fmt.Fprintf(&buf, "<p>Estado: %s</p>", b.PaymentStatus)
	return buf.String()
}

func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg, err := s.storage.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if cfg == nil || !cfg.Enabled {
		return errors.New("email not configured or disabled")
	}

	switch cfg.Provider {
	case "smtp", "gmail":
		return s.sendSMTP(cfg, to, subject, body)
	case "sendgrid":
		return s.sendSendgrid(cfg, to, subject, body)
	case "resend":
		return s.sendResend(cfg, to, subject, body)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// TestConfig sends a test email with the provided (possibly unsaved) config.
func (s *Service) TestConfig(ctx context.Context, cfg storage.EmailConfig, to string) error {
	const subject = "Test Email"
	const body = "This is a test email from watertariff."
	switch cfg.Provider {
	case "smtp", "gmail":
		return s.sendSMTP(&cfg, to, subject, body)
	case "sendgrid":
		return s.sendSendgrid(&cfg, to, subject, body)
	case "resend":
		return s.sendResend(&cfg, to, subject, body)
	default:
		return fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

func (s *Service) sendSMTP(cfg *storage.EmailConfig, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	msg := []byte(fmt.Sprintf("To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", to, subject, body))

	if cfg.Encryption == "ssl" {
		// SSL/TLS (Implicit)
		tlsConfig := &tls.Config{
			InsecureSkipVerify: false,
			ServerName:         cfg.Host,
		}
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, cfg.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		if cfg.Username != "" && cfg.Password != "" {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err = c.Auth(auth); err != nil {
				return err
			}
		}
		return submitMessage(c, cfg.FromAddress, to, msg)
	} else if cfg.Encryption == "tls" {
		// STARTTLS (Explicit)
		c, err := smtp.Dial(addr)
		if err != nil {
			return err
		}
		defer c.Quit()

		if ok, _ := c.Extension("STARTTLS"); ok {
			config := &tls.Config{ServerName: cfg.Host}
			if err = c.StartTLS(config); err != nil {
				return err
			}
		}

		if cfg.Username != "" && cfg.Password != "" {
			auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
			if err = c.Auth(auth); err != nil {
				return err
			}
		}
		return submitMessage(c, cfg.FromAddress, to, msg)
	}

	// None / Plain
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return smtp.SendMail(addr, auth, cfg.FromAddress, []string{to}, msg)
}

func submitMessage(c *smtp.Client, from, to string, msg []byte) error {
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *Service) sendSendgrid(cfg *storage.EmailConfig, to, subject, body string) error {
	from := mail.NewEmail(cfg.FromName, cfg.FromAddress)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, body, body)
	client := sendgrid.NewSendClient(cfg.APIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *Service) sendResend(cfg *storage.EmailConfig, to, subject, body string) error {
	url := "https://api.resend.com/emails"

	payload := map[string]string{
		"from":    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		"to":      to,
		"subject": subject,
		"html":    body,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("resend error: %d %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
