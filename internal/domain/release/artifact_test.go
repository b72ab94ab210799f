package release

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestHumanSize checks rounding and trailing-zero trimming.
func TestHumanSize(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:         "0MB",
		2_097_152: "2MB",
		1_572_864: "1.5MB",
		1_048_576: "1MB",
		5_242:     "0MB",
		10_486:    "0.01MB",
		1_153_434: "1.1MB",
		1_363_149: "1.3MB",
	}
	for n, want := range cases {
		require.Equal(t, want, HumanSize(n), "bytes=%d", n)
	}

	require.Equal(t, "1.5MB", Artifact{SizeBytes: 1_572_864}.HumanSize())
}

// TestHumanSize_WholeMegabytes checks that exact multiples print without decimals.
func TestHumanSize_WholeMegabytes(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Int64Range(0, 1<<20).Draw(t, "megabytes")
		require.Equal(t, strconv.FormatInt(n, 10)+"MB", HumanSize(n*bytesPerMegabyte))
	})
}
