// Package simhash fingerprints extracted result rows so pagination can tell
// a fresh page from a portal that re-serves the previous one.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
)

// cellSep separates cells inside a row token; it cannot occur in trimmed
// cell text coming from an HTML table.
const cellSep = "\x1f"

// FingerprintRows computes a SimHash where every row is one token, so the
// same rows in the same order always produce the same fingerprint and a
// single changed cell changes it.
func FingerprintRows(rows [][]string) uint64 {
	tokens := make([]string, 0, len(rows))
	for i, row := range rows {
		// The position keeps reordered pages distinguishable.
		tokens = append(tokens, string(rune('0'+i%10))+cellSep+strings.Join(row, cellSep))
	}
	return fingerprintTokens(tokens)
}

func fingerprintTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
