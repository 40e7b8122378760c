// Package runid generates short, filesystem- and URL-safe identifiers used
// to tag one archiving run (log lines, the generated archive's metadata
// entry).
package runid

import (
	"crypto/rand"
	"io"
	"regexp"

	"github.com/btcsuite/btcutil/base58"
)

const idLength = 22

var idRegex = regexp.MustCompile(`^[123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz]{22}$`)

// New returns a new random run identifier.
func New() string {
	return NewFromReader(rand.Reader)
}

// NewFromReader returns a new random run identifier using r as a source of randomness.
func NewFromReader(r io.Reader) string {
	// One byte more than 128 bits, to always get full length after base58 encoding.
	data := make([]byte, 17)
	_, err := io.ReadFull(r, data)
	if err != nil {
		panic(err)
	}
	res := base58.Encode(data)
	return res[0:idLength]
}

// Valid reports whether id looks like a run identifier produced by this package.
func Valid(id string) bool {
	return idRegex.MatchString(id)
}
