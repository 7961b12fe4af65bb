// Package lang classifies command text into the two supported scripts.
package lang

// Language is one of the two display/classification languages.
type Language string

const (
	English Language = "en"
	Urdu    Language = "ur"
)

// Urdu is written in the Arabic Unicode block.
const (
	arabicBlockLo rune = 0x0600
	arabicBlockHi rune = 0x06FF
)

// Classify tags text as Urdu when it contains at least one Arabic-block
// codepoint, otherwise English. A single matching codepoint is sufficient:
// any native-script fragment should switch the rendering mode, so mixed
// utterances bias toward Urdu. The empty string classifies as English.
func Classify(text string) Language {
	for _, r := range text {
		if r >= arabicBlockLo && r <= arabicBlockHi {
			return Urdu
		}
	}
	return English
}

// Valid reports whether l is one of the supported languages.
func Valid(l Language) bool {
	return l == English || l == Urdu
}

// Tag returns the capture language tag handed to the speech capability.
func Tag(l Language) string {
	if l == Urdu {
		return "ur-PK"
	}
	return "en-US"
}
