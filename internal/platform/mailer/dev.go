package mailer

import (
	"fmt"

	"github.com/fleetworks/fleet-api/pkg/logger"
)

type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendPasswordReset(toEmail, toName, code, resetURL string) error {
	logger.Info("[DEV MAIL] Password Reset Email",
		"to", toEmail,
		"name", toName,
		"code", code,
		"reset_url", resetURL,
	)

	fmt.Printf("\n"+
		"-----------------------------------------------------------------\n"+
		"PASSWORD RESET EMAIL (DEV MODE)\n"+
		"-----------------------------------------------------------------\n"+
		"To: %s (%s)\n"+
		"Subject: Your password reset code\n"+
		"\n"+
		"Passcode: %s\n"+
		"Reset URL: %s\n"+
		"-----------------------------------------------------------------\n\n",
		toEmail, toName, code, resetURL)

	return nil
}
