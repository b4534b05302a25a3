package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*
var templateFS embed.FS

var (
	resetHTMLTemplate = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/password_reset.html"))
	resetTextTemplate = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/password_reset.txt"))
)

// resetTemplateData is shared by the HTML and plain text bodies.
type resetTemplateData struct {
	ProductName   string
	PersonName    string
	ResetLink     string
	ExpiryMinutes int
	Year          int
	SentAt        string
}

func newResetTemplateData(productName, personName, resetLink string, now time.Time) resetTemplateData {
	return resetTemplateData{
		ProductName:   productName,
		PersonName:    personName,
		ResetLink:     resetLink,
		ExpiryMinutes: int(TokenExpiry / time.Minute),
		Year:          now.Year(),
		SentAt:        now.Format("2006-01-02 15:04:05 MST"),
	}
}

// renderResetBodies renders the HTML and plain text bodies of a reset email.
func renderResetBodies(data resetTemplateData) (htmlBody, textBody string, err error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := resetHTMLTemplate.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render password reset html: %w", err)
	}
	if err := resetTextTemplate.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render password reset text: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
