package id

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDShape(t *testing.T) {
	g := NewGenerator(20)
	re := regexp.MustCompile(`^[a-z0-9]{20}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := g.NewID()
		assert.Regexp(t, re, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 200)
}
