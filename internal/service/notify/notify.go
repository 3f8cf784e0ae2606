package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/logger"
)

// Service delivers alerts by email and SMS. Unconfigured channels report
// false without touching the network.
type Service struct {
	smtpHost string
	smtpPort int
	smtpUser string
	smtpPass string
	smtpFrom string

	smsURL string
	smsKey string

	client   *http.Client
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger   *logger.Logger
}

func NewService(cfg *config.Config, logger *logger.Logger) *Service {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Service{
		smtpHost: cfg.SMTPHost,
		smtpPort: cfg.SMTPPort,
		smtpUser: cfg.SMTPUser,
		smtpPass: cfg.SMTPPass,
		smtpFrom: from,
		smsURL:   cfg.SMSAPIURL,
		smsKey:   cfg.SMSAPIKey,
		client:   newHTTPClient(cfg.SMSTimeout),
		sendMail: smtp.SendMail,
		logger:   logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func (s *Service) EmailConfigured() bool {
	return s.smtpHost != "" && s.smtpUser != "" && s.smtpPass != ""
}

func (s *Service) SMSConfigured() bool {
	return s.smsURL != "" && s.smsKey != ""
}

// SendEmail sends a plain-text message. net/smtp upgrades to STARTTLS when
// the server offers it.
func (s *Service) SendEmail(to, subject, body string) bool {
	if !s.EmailConfigured() {
		s.logger.Warning("SMTP not configured; skipping email to %s", to)
		return false
	}

	addr := net.JoinHostPort(s.smtpHost, strconv.Itoa(s.smtpPort))
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	if err := s.sendMail(addr, auth, s.smtpFrom, []string{to}, buildMessage(s.smtpFrom, to, subject, body)); err != nil {
		s.logger.Error("Email send error to %s: %v", to, err)
		return false
	}
	s.logger.Info("Email sent to %s", to)
	return true
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	APIKey  string `json:"api_key"`
}

// SendSMS posts the message to the SMS gateway; only HTTP 200 counts as sent.
func (s *Service) SendSMS(to, message string) bool {
	if !s.SMSConfigured() {
		s.logger.Warning("SMS API not configured; skipping SMS to %s", to)
		return false
	}

	payload, err := json.Marshal(smsRequest{To: to, Message: message, APIKey: s.smsKey})
	if err != nil {
		s.logger.Error("SMS encode error: %v", err)
		return false
	}

	resp, err := s.client.Post(s.smsURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("SMS send error to %s: %v", to, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warning("SMS gateway returned %d for %s", resp.StatusCode, to)
		return false
	}
	return true
}
