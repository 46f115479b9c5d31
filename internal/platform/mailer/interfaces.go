package mailer

type Service interface {
	SendPasswordReset(toEmail, toName, code, resetURL string) error
}
