package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "circle-0.1.0", String())
	assert.Equal(t, "circle-0.1.0+dev", Full())
}
