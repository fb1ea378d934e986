package processing

import (
	"math/bits"

	"github.com/disintegration/imaging"
)

// DefaultHashSize gives a 64-bit difference hash
const DefaultHashSize = 8

// maxHashSize keeps hashSize*hashSize bits inside a uint64
const maxHashSize = 8

// PerceptualHash returns the 64-bit difference hash of raw image bytes.
// See DHash for the meaning of a zero result.
func PerceptualHash(raw []byte) uint64 {
	return DHash(raw, DefaultHashSize)
}

// DHash computes a difference hash used to spot screenshot changes.
//
// The image is reduced to a (hashSize+1) x hashSize grayscale thumbnail and
// each bit records whether a pixel is brighter than its left neighbour, row
// by row, most significant bit first.
//
// Zero means the hash is unavailable: the bytes did not decode or hashSize is
// outside [1, 8]. A perfectly flat image also hashes to zero, so callers must
// never treat two zero hashes as identical content.
func DHash(raw []byte, hashSize int) uint64 {
	if hashSize < 1 || hashSize > maxHashSize {
		return 0
	}
	img, err := DecodeImage(raw)
	if err != nil {
		return 0
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return 0
	}

	thumb := imaging.Resize(imaging.Grayscale(img), hashSize+1, hashSize, imaging.Lanczos)

	var value uint64
	for y := 0; y < hashSize; y++ {
		row := thumb.Pix[y*thumb.Stride:]
		for x := 0; x < hashSize; x++ {
			value <<= 1
			// gray pixels have R == G == B, so the red channel is the intensity
			if row[(x+1)*4] > row[x*4] {
				value |= 1
			}
		}
	}
	return value
}

// HashUnavailable reports whether h is the zero sentinel
func HashUnavailable(h uint64) bool {
	return h == 0
}

// HammingDistance counts differing bits between two hashes
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SameScreen reports whether two hashes are close enough to call the screen unchanged.
// An unavailable hash on either side never counts as the same screen.
func SameScreen(a, b uint64, threshold int) bool {
	if HashUnavailable(a) || HashUnavailable(b) {
		return false
	}
	return HammingDistance(a, b) <= threshold
}
