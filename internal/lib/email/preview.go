package email

// PreviewData holds sample values for every template, keyed by template
// name, so each one can be rendered without a real recipient.
var PreviewData = map[Template]map[string]string{
	TemplateOTP: {
		"OTP":              "4821",
		"ShopName":         "Sharma Xerox",
		"ExpiresInMinutes": "10",
	},
}
