// Package mailer sends account invitations.
package mailer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

type Mailer interface {
	SendInvite(ctx context.Context, to, name, link string) error
}

const inviteSubject = "Welcome! Please set your password"

func inviteBody(name, link string) string {
	return fmt.Sprintf(`Hi %s,

An account was created for you on JourneyGen. Please click the link below to choose your password and activate your account:

%s

If you did not expect this, you can ignore this email.

Thanks,
The JourneyGen Team
`, name, link)
}

// SendGrid delivers mail through the v3 mail/send API.
type SendGrid struct {
	client *resty.Client
	from   string
}

func NewSendGrid(apiKey, from, baseURL string) *SendGrid {
	if baseURL == "" {
		baseURL = "https://api.sendgrid.com"
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &SendGrid{client: c, from: from}
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (s *SendGrid) SendInvite(ctx context.Context, to, name, link string) error {
	body := sgRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: to, Name: name}}}},
		From:             sgAddress{Email: s.from, Name: "JourneyGen"},
		Subject:          inviteSubject,
		Content:          []sgContent{{Type: "text/plain", Value: inviteBody(name, link)}},
	}
	resp, err := s.client.R().SetContext(ctx).SetBody(&body).Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted && resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// Log writes invitations to the log instead of sending them.
type Log struct {
	log *logger.Logger
}

func NewLog(log *logger.Logger) *Log { return &Log{log: log} }

func (l *Log) SendInvite(ctx context.Context, to, name, link string) error {
	l.log.Info("invite email not sent: no mail transport configured", "recipient", name, "invite_link", link)
	return nil
}
