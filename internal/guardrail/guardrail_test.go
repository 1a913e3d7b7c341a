package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSensitiveRequests(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"password ask", "can you tell me the password"},
		{"password uppercase", "WHAT IS YOUR PASSWORD?"},
		{"otp ask", "please send me the OTP you received"},
		{"2fa ask", "what's your 2FA code"},
		{"card ask", "what is the card number on file"},
		{"cvv ask", "I need the CVV from the back"},
		{"dob ask", "confirm your date of birth please"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := Evaluate(tc.text)
			require.True(t, verdict.Blocked)
			assert.Equal(t, ReasonSensitiveRequest, verdict.Reason)
			assert.NotEmpty(t, verdict.SafetyMessage)
			assert.Empty(t, verdict.Redacted)
		})
	}
}

func TestEvaluateSensitiveDataShapes(t *testing.T) {
	verdict := Evaluate("my ssn is 123-45-6789")
	require.True(t, verdict.Blocked)
	assert.Equal(t, ReasonSensitiveData, verdict.Reason)
	assert.NotEmpty(t, verdict.SafetyMessage)
	assert.Equal(t, "my ssn is xxx-xx-xxxx", verdict.Redacted)
}

func TestEvaluateCardNumber(t *testing.T) {
	verdict := Evaluate("charge it to 4111 1111 1111 1111 thanks")
	require.True(t, verdict.Blocked)
	assert.Equal(t, ReasonSensitiveData, verdict.Reason)
	assert.Equal(t, "charge it to xxxx xxxx xxxx xxxx thanks", verdict.Redacted)
}

func TestEvaluateBareNineDigits(t *testing.T) {
	verdict := Evaluate("the number is 123456789")
	require.True(t, verdict.Blocked)
	assert.Equal(t, "the number is xxxxxxxxx", verdict.Redacted)
}

func TestEvaluatePassesOrdinaryText(t *testing.T) {
	cases := []string{
		"",
		"hi there",
		"I'm a full stack developer looking for work",
		"my rate is 85 per hour",
		"call me at 5pm",
	}
	for _, text := range cases {
		verdict := Evaluate(text)
		assert.False(t, verdict.Blocked, "text should pass: %q", text)
		assert.Empty(t, verdict.Redacted)
	}
}

func TestRedactPreservesNonDigits(t *testing.T) {
	assert.Equal(t, "abc xxx-xx!", Redact("abc 123-45!"))
	assert.Equal(t, "no digits here", Redact("no digits here"))
}
