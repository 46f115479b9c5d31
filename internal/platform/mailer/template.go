package mailer

import "fmt"

// passwordResetMessage builds the reset email shared by all transports.
// The code expires after 30 minutes; the link carries it for one-click
// resets.
func passwordResetMessage(toName, code, resetURL string) (subject, text, html string) {
	if toName == "" {
		toName = "there"
	}

	subject = "Your password reset code"

	text = fmt.Sprintf("Hello %s,\n\n"+
		"Here is your one-time passcode to update your password. It will expire in 30 minutes.\n\n"+
		"    %s\n\n"+
		"Or open this link to reset your password directly: %s\n\n"+
		"If you didn't request a password reset, please ignore this email.",
		toName, code, resetURL)

	html = fmt.Sprintf(`
		<h2>Vehicle Management System</h2>
		<p>Hello %s,</p>
		<p>Here is your one-time passcode to update your password. It will expire in 30 minutes.</p>
		<h2 style="text-align: center; color: #007BFF; font-size: 1.5em;">%s</h2>
		<p>Or click the button below to reset your password directly:</p>
		<p><a href="%s" style="background-color: #007BFF; color: white; padding: 12px 20px; text-decoration: none; border-radius: 8px;">Reset Password</a></p>
		<p>If you didn't request a password reset, please ignore this email.</p>
	`, toName, code, resetURL)

	return subject, text, html
}
