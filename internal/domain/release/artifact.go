package release

import (
	"math"
	"strconv"
)

// bytesPerMegabyte is the binary megabyte used for the size report.
const bytesPerMegabyte = 1024 * 1024

// Artifact is the compressed release written at the end of the pipeline.
type Artifact struct {
	// Path of the archive, relative to the working directory when the build root is relative.
	Path string
	// SizeBytes is the archive size on disk.
	SizeBytes int64
	// Checksum is the hex-encoded SHA-512 of the archive contents.
	Checksum string
}

// HumanSize renders the artifact size in megabytes.
func (a Artifact) HumanSize() string {
	return HumanSize(a.SizeBytes)
}

// HumanSize renders n bytes as megabytes rounded to two decimals without
// trailing zeros: 2097152 is "2MB", 1572864 is "1.5MB".
func HumanSize(n int64) string {
	megabytes := math.Round(float64(n)/bytesPerMegabyte*100) / 100

	return strconv.FormatFloat(megabytes, 'f', -1, 64) + "MB"
}
