package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOTP(t *testing.T) {
	html, text, err := RenderOTP("Acme Panel", "482913", 5)
	require.NoError(t, err)
	assert.Contains(t, html, "482913")
	assert.Contains(t, html, "Acme Panel")
	assert.Contains(t, text, "482913")
	assert.Contains(t, text, "5 minutes")
}

func TestRenderVerification_EscapesURL(t *testing.T) {
	html, text, err := RenderVerification("Acme", "https://acme.test/verify?token=abc", 30)
	require.NoError(t, err)
	assert.Contains(t, html, "https://acme.test/verify?token=abc")
	assert.Contains(t, text, "token=abc")
}
