// Package voiceerr defines the closed capture-failure taxonomy and localizes
// each code for display. Messages carry no interpolated user data.
package voiceerr

import "github.com/hraza/awaaz/internal/lang"

// Code identifies one capture failure. The set is closed; new codes must not
// be added without extending both message tables.
type Code string

const (
	CodePermissionDenied  Code = "permission-denied"
	CodeNoSpeechDetected  Code = "no-speech-detected"
	CodeDeviceUnavailable Code = "capture-device-unavailable"
	CodeNetworkFailure    Code = "network-failure"
	CodeAborted           Code = "aborted"
	CodeNotSupported      Code = "not-supported"
)

// VoiceError is surfaced through engine state, never raised across it.
type VoiceError struct {
	Code    Code
	Message string
}

// New builds a VoiceError localized for the given display language.
func New(code Code, display lang.Language) VoiceError {
	return VoiceError{Code: code, Message: Localize(code, display)}
}

// Recoverable reports whether a fresh start is worth offering for the code.
// not-supported is an environment failure and aborted is user-initiated;
// neither benefits from an immediate retry.
func Recoverable(code Code) bool {
	switch code {
	case CodePermissionDenied, CodeNoSpeechDetected, CodeDeviceUnavailable, CodeNetworkFailure:
		return true
	}
	return false
}

// UserInitiated reports whether the code records a deliberate cancellation
// rather than a failure.
func UserInitiated(code Code) bool {
	return code == CodeAborted
}

var englishMessages = map[Code]string{
	CodePermissionDenied:  "Microphone permission was denied",
	CodeNoSpeechDetected:  "No speech was detected",
	CodeDeviceUnavailable: "Microphone is unavailable",
	CodeNetworkFailure:    "Network error during voice capture",
	CodeAborted:           "Voice capture was cancelled",
	CodeNotSupported:      "Voice input is not supported on this device",
}

var urduMessages = map[Code]string{
	CodePermissionDenied:  "مائیکروفون کی اجازت نہیں ملی",
	CodeNoSpeechDetected:  "کوئی آواز سنائی نہیں دی",
	CodeDeviceUnavailable: "مائیکروفون دستیاب نہیں ہے",
	CodeNetworkFailure:    "نیٹ ورک کی خرابی، دوبارہ کوشش کریں",
	CodeAborted:           "آواز کی ریکارڈنگ منسوخ کر دی گئی",
	CodeNotSupported:      "اس ڈیوائس پر صوتی ان پٹ دستیاب نہیں",
}

const (
	genericEnglish = "A voice input error occurred"
	genericUrdu    = "صوتی ان پٹ میں خرابی پیش آئی"
)

// Localize returns the display message for code in the given language.
// Unknown codes fall back to a generic localized message.
func Localize(code Code, display lang.Language) string {
	table := englishMessages
	generic := genericEnglish
	if display == lang.Urdu {
		table = urduMessages
		generic = genericUrdu
	}
	if msg, ok := table[code]; ok {
		return msg
	}
	return generic
}

// Codes lists every supported code, in taxonomy order.
func Codes() []Code {
	return []Code{
		CodePermissionDenied,
		CodeNoSpeechDetected,
		CodeDeviceUnavailable,
		CodeNetworkFailure,
		CodeAborted,
		CodeNotSupported,
	}
}
