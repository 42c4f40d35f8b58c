package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_UnconfiguredToken(t *testing.T) {
	c := NewAakash(Config{})
	ok, err := c.Send(context.Background(), "9812345678", "hola")
	require.Error(t, err)
	assert.False(t, ok)
}

func TestOTPMessage(t *testing.T) {
	got := OTPMessage("Acme Panel", "482913", 5)
	assert.Equal(t, "Your Acme Panel verification code is: 482913. Valid for 5 minutes.", got)
}
