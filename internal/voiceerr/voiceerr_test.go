package voiceerr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hraza/awaaz/internal/lang"
)

func TestLocalizeCoversEveryCodeInBothLanguages(t *testing.T) {
	for _, code := range Codes() {
		for _, display := range []lang.Language{lang.English, lang.Urdu} {
			msg := Localize(code, display)
			require.NotEmpty(t, msg, "code %s language %s", code, display)
		}
	}
}

func TestLocalizeUnknownCodeFallsBack(t *testing.T) {
	require.Equal(t, genericEnglish, Localize(Code("mystery"), lang.English))
	require.Equal(t, genericUrdu, Localize(Code("mystery"), lang.Urdu))
}

func TestLocalizeUnknownLanguageUsesEnglish(t *testing.T) {
	require.Equal(t, englishMessages[CodeAborted], Localize(CodeAborted, lang.Language("fr")))
}

func TestNewFillsLocalizedMessage(t *testing.T) {
	ve := New(CodePermissionDenied, lang.Urdu)
	require.Equal(t, CodePermissionDenied, ve.Code)
	require.Equal(t, urduMessages[CodePermissionDenied], ve.Message)
}

func TestRecoverablePartition(t *testing.T) {
	require.True(t, Recoverable(CodePermissionDenied))
	require.True(t, Recoverable(CodeNoSpeechDetected))
	require.True(t, Recoverable(CodeDeviceUnavailable))
	require.True(t, Recoverable(CodeNetworkFailure))
	require.False(t, Recoverable(CodeAborted))
	require.False(t, Recoverable(CodeNotSupported))
	require.False(t, Recoverable(Code("mystery")))
}

func TestUserInitiated(t *testing.T) {
	require.True(t, UserInitiated(CodeAborted))
	require.False(t, UserInitiated(CodeNetworkFailure))
}
