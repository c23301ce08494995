// Package id generates random identifiers.
package id

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Generator returns lowercase alphanumeric ids of a fixed length.
type Generator struct {
	length int
}

func NewGenerator(length int) *Generator {
	return &Generator{length: length}
}

// NewID panics only if the system random source fails.
func (g *Generator) NewID() string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, g.length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("id: crypto/rand: " + err.Error())
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b)
}
