// Package saferender owns the one string in this system that is never
// generated: the crisis-resource block. It is a fixed constant, rendered
// verbatim, and structurally verifiable so the invariant checker (C12)
// can confirm it actually made it into a response untouched.
package saferender

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const separator = "----------------------------------------"

// CrisisBlock is the immutable, never-generated crisis-resource text.
// Composed per spec §4.3: separator, header, named resources with action
// phrases in the required order, an availability line, closing separator.
const CrisisBlock = separator + `
If you are in crisis or thinking about suicide, you are not alone and help is available right now.

  - Call or text 988 — Suicide & Crisis Lifeline
  - Text HOME to 741741 — Crisis Text Line
  - Call 1-800-662-4357 — SAMHSA National Helpline
  - Visit iasp.info/resources — International Association for Suicide Prevention

These services are free, confidential, and available 24/7.
` + separator

// MaxBlockOffset is the byte budget within which the block must appear
// at the start of a rendered response (spec §4.1 invariant 1, §8 invariant 2).
const MaxBlockOffset = 1500

// blockHash is computed once so audit events can record a tamper-evident
// fingerprint of the exact resource text without re-hashing it per call.
var blockHash = func() string {
	sum := sha256.Sum256([]byte(CrisisBlock))
	return hex.EncodeToString(sum[:])
}()

// BlockHash returns the sha256 hex digest of CrisisBlock, for inclusion
// in audit events per spec §4.3 ("hash of the block is retained...for
// tamper detection").
func BlockHash() string { return blockHash }

// Prepend deterministically prepends CrisisBlock to body, separated by a
// blank line. This is the only way the block may enter a response —
// never through generation.
func Prepend(body string) string {
	var b strings.Builder
	b.WriteString(CrisisBlock)
	b.WriteString("\n\n")
	b.WriteString(body)
	return b.String()
}

// requiredPhoneNumbersInOrder is the ordered sequence spec §8 invariant 2
// requires to appear, verbatim, within the first MaxBlockOffset bytes.
var requiredPhoneNumbersInOrder = []string{"988", "741741", "1-800-662-4357"}

// VerifyStructure performs the structural check from spec §4.1 invariant 1
// and §8 invariant 2: the first MaxBlockOffset bytes of text must open
// with the separator, contain the required resource numbers in order,
// and close with the separator.
func VerifyStructure(text string) bool {
	window := text
	if len(window) > MaxBlockOffset {
		window = window[:MaxBlockOffset]
	}

	if !strings.HasPrefix(strings.TrimLeft(window, "\n"), separator) {
		return false
	}

	searchFrom := 0
	for _, number := range requiredPhoneNumbersInOrder {
		idx := strings.Index(window[searchFrom:], number)
		if idx < 0 {
			return false
		}
		searchFrom += idx + len(number)
	}

	// The block's closing separator must also be present before the
	// window cuts off, i.e. there are at least two separator occurrences.
	return strings.Count(window, separator) >= 2
}
