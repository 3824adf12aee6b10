package phonebook

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

func (e *Engine) verificationURL(token string) string {
	return strings.TrimRight(e.config.Recovery.PublicBaseURL, "/") + "/api/users/verify/" + url.PathEscape(token)
}

func (e *Engine) resetURL(token string) string {
	return strings.TrimRight(e.config.Recovery.PublicBaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func verificationMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email",
		Text:    "Click the link to verify your email: " + link,
		HTML:    fmt.Sprintf(`<p><a target="_blank" href="%s">Click to verify your email</a></p>`, html.EscapeString(link)),
	}
}

func resetMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Text:    "Click the link to choose a new password: " + link + "\nIf you did not ask for this, ignore this email.",
		HTML:    fmt.Sprintf(`<p><a target="_blank" href="%s">Click to reset your password</a></p><p>If you did not ask for this, ignore this email.</p>`, html.EscapeString(link)),
	}
}

func (e *Engine) send(ctx context.Context, msg Message) error {
	if err := e.mailer.Send(ctx, msg); err != nil {
		e.metricInc(MetricMailFailure)
		e.logger.Error("mail delivery failed", zap.String("subject", msg.Subject), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}
