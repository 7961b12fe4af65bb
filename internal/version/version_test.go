package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringContainsBuildMetadata(t *testing.T) {
	s := String()
	require.Contains(t, s, "awaaz ")
	require.Contains(t, s, "commit=")
	require.Contains(t, s, "go=go")
}
