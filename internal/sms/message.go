package sms

import "fmt"

// OTPMessage compone el texto del código de verificación para un panel.
func OTPMessage(displayName, otp string, minutes int) string {
	return fmt.Sprintf("Your %s verification code is: %s. Valid for %d minutes.", displayName, otp, minutes)
}
