// Package notify delivers access-change notifications to directory
// users. Delivery is fire-and-forget; failures are logged and never
// surfaced to the engine.
package notify

import (
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/ogulcan/ghwarden/internal/models"
	"github.com/ogulcan/ghwarden/internal/settings"
	"github.com/ogulcan/ghwarden/pkg/logger"
)

// Notifier is the notification sink consumed by the access lifecycle.
type Notifier interface {
	// AccessRevoked notifies the user that GitHub access for the given
	// identity has been revoked or restricted.
	AccessRevoked(user *models.User, githubUser *models.GithubUser)
}

// Mailer sends notifications over SMTP.
type Mailer struct {
	snap *settings.Snapshot
}

func NewMailer(snap *settings.Snapshot) *Mailer {
	return &Mailer{snap: snap}
}

func (m *Mailer) AccessRevoked(user *models.User, githubUser *models.GithubUser) {
	if user.Email == nil || *user.Email == "" {
		logger.WithField("username", user.Username).Warnf("Skipping access-revoked mail: no email address")
		return
	}
	to := *user.Email
	login := githubUser.Login

	go func() {
		if err := m.send(to, login); err != nil {
			logger.WithError(err).WithField("to", to).Error("Failed to send access-revoked mail")
		}
	}()
}

func (m *Mailer) send(to, login string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.snap.EmailFrom); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	if m.snap.EmailReplyTo != "" {
		if err := msg.ReplyTo(m.snap.EmailReplyTo); err != nil {
			return err
		}
	}
	msg.Subject("GitHub Access Revoked")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Access for the GitHub account %q has been revoked because it no "+
			"longer meets the %s access requirements.\n\nVisit %s for details.\n",
		login, m.snap.Company, m.snap.EmailBaseURL))

	opts := []mail.Option{mail.WithPort(m.snap.SMTPPort)}
	if m.snap.SMTPUserName != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.snap.SMTPUserName),
			mail.WithPassword(m.snap.SMTPPassword),
		)
	}
	if m.snap.SMTPStartTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(m.snap.SMTPAddress, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSend(msg)
}

// Noop discards all notifications. Used when enforcement is disabled
// and in tests.
type Noop struct{}

func (Noop) AccessRevoked(*models.User, *models.GithubUser) {}
