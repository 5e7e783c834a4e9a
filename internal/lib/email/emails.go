package email

import (
	"strconv"
	"time"
)

// SendOTPEmail sends a password reset code.
func (c *Client) SendOTPEmail(to, code, shopName string, expiresIn time.Duration) error {
	data := map[string]string{
		"OTP":              code,
		"ShopName":         shopName,
		"ExpiresInMinutes": strconv.Itoa(int(expiresIn.Minutes())),
	}

	return c.SendEmail(
		to,
		"Your AutoPrintX password reset code",
		TemplateOTP,
		data,
	)
}
