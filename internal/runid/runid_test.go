package runid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gitlab.com/tozd/mwarchive/internal/runid"
)

func TestNew(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := runid.New()
		assert.Len(t, id, 22)
		assert.True(t, runid.Valid(id))
	}
}
