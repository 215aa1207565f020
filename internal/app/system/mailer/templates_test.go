package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVerificationEmail(t *testing.T) {
	link := VerifyLink("https://reg.example.com/", "abc123")
	assert.Equal(t, "https://reg.example.com/verify-email?token=abc123", link)

	e, err := BuildVerificationEmail("asha@example.com", VerificationEmailData{
		SiteName:   "Hackathon",
		Name:       "Asha",
		VerifyLink: link,
		ExpiresIn:  "24 hours",
	})
	require.NoError(t, err)

	assert.Equal(t, "asha@example.com", e.To)
	assert.Equal(t, "Verify your email for Hackathon", e.Subject)
	assert.Contains(t, e.TextBody, "Hi Asha,")
	assert.Contains(t, e.TextBody, link)
	assert.Contains(t, e.TextBody, "24 hours")
	assert.Contains(t, e.HTMLBody, `href="https://reg.example.com/verify-email?token=abc123"`)
	assert.Contains(t, e.HTMLBody, "Hackathon")
}

func TestBuildVerificationEmail_EscapesName(t *testing.T) {
	e, err := BuildVerificationEmail("x@example.com", VerificationEmailData{
		SiteName:   "Hackathon",
		Name:       "<script>alert(1)</script>",
		VerifyLink: "https://reg.example.com/verify-email?token=t",
		ExpiresIn:  "24 hours",
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(e.HTMLBody, "<script>"))
}
