// Package guardrail screens inbound user text for sensitive-information
// requests and sensitive-data shapes before it is stored or answered.
// Evaluation is pure: no I/O, no state.
package guardrail

import (
	"regexp"
	"strings"
)

// Verdict is the outcome of evaluating one message.
type Verdict struct {
	Blocked bool
	// Reason is "sensitive_request" or "sensitive_data" when blocked.
	Reason string
	// SafetyMessage is the user-facing refusal to send instead of a reply.
	SafetyMessage string
	// Redacted is a digit-masked echo of the input, set only for
	// sensitive-data blocks; callers persist it instead of the raw text.
	Redacted string
}

const (
	ReasonSensitiveRequest = "sensitive_request"
	ReasonSensitiveData    = "sensitive_data"

	requestSafetyMessage = "I can't help with passwords, verification codes, or other account credentials. Is there something else I can do for you?"
	dataSafetyMessage    = "It looks like your message contains sensitive personal data, so I didn't process it. Please don't share numbers like that here."
)

// Request keywords cover asks for credentials and identity documents.
// Bare "ssn" is deliberately left to the shape patterns below so a message
// that volunteers the number still gets a redacted echo for storage.
var sensitiveRequestKeywords = []string{
	"password",
	"one-time code",
	"one time code",
	"otp",
	"2fa",
	"two-factor",
	"verification code",
	"card number",
	"cvv",
	"cvc",
	"security code",
	"bank account",
	"routing number",
	"passport number",
	"driver's license",
	"drivers license",
	"social security number",
	"date of birth",
}

var (
	ssnPattern       = regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)
	cardPattern      = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	nineDigitPattern = regexp.MustCompile(`\b\d{9}\b`)
)

// Evaluate classifies text. The keyword check runs first and blocks hard
// with no redaction; the shape check blocks and produces a redacted echo.
func Evaluate(text string) Verdict {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Verdict{}
	}

	for _, keyword := range sensitiveRequestKeywords {
		if strings.Contains(normalized, keyword) {
			return Verdict{
				Blocked:       true,
				Reason:        ReasonSensitiveRequest,
				SafetyMessage: requestSafetyMessage,
			}
		}
	}

	if ssnPattern.MatchString(text) || cardPattern.MatchString(text) || nineDigitPattern.MatchString(text) {
		return Verdict{
			Blocked:       true,
			Reason:        ReasonSensitiveData,
			SafetyMessage: dataSafetyMessage,
			Redacted:      Redact(text),
		}
	}

	return Verdict{}
}

// Redact replaces every digit with 'x', preserving all other characters.
func Redact(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune('x')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
