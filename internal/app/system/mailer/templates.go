// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Email is a rendered message ready for delivery.
type Email struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
	HTMLBody string `json:"html_body"`
}

// VerificationEmailData holds data for verification email templates.
type VerificationEmailData struct {
	SiteName   string
	Name       string
	VerifyLink string
	ExpiresIn  string // e.g., "24 hours"
}

var verificationTmpl = template.Must(template.New("verification").Parse(verificationHTMLTemplate))

// BuildVerificationEmail renders the verification message addressed to to.
func BuildVerificationEmail(to string, data VerificationEmailData) (Email, error) {
	var html bytes.Buffer
	if err := verificationTmpl.Execute(&html, data); err != nil {
		return Email{}, err
	}
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("Verify your email for %s", data.SiteName),
		TextBody: buildVerificationText(data),
		HTMLBody: html.String(),
	}, nil
}

// VerifyLink joins the public base URL and the token into the link the
// participant clicks.
func VerifyLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-email?token=" + token
}

func buildVerificationText(data VerificationEmailData) string {
	var buf bytes.Buffer
	if data.Name != "" {
		fmt.Fprintf(&buf, "Hi %s,\n\n", data.Name)
	}
	fmt.Fprintf(&buf, "Confirm your email address for %s by opening this link:\n", data.SiteName)
	buf.WriteString(data.VerifyLink + "\n\n")
	fmt.Fprintf(&buf, "This link expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you did not sign up, you can safely ignore this email.\n")
	return buf.String()
}

const verificationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Verify your email</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <!-- Header -->
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>

          <!-- Content -->
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                {{if .Name}}Hi {{.Name}},<br><br>{{end}}Please confirm your email address to finish registering.
              </p>

              <!-- Button -->
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.VerifyLink}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Verify Email
                    </a>
                  </td>
                </tr>
              </table>

              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This link expires in {{.ExpiresIn}}.
              </p>
            </td>
          </tr>

          <!-- Footer -->
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you did not sign up, you can safely ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
