package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterStartsAt10000AndIsMonotonic(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, int64(10000), c.Next())
	assert.Equal(t, int64(10001), c.Next())
}

func TestZeroValueIsInvalid(t *testing.T) {
	assert.False(t, UserID(0).Valid())
	assert.True(t, UserID(10000).Valid())
}

func TestUnorderedPairIsOrderInsensitive(t *testing.T) {
	a, b := UserID(10000), UserID(10001)
	assert.Equal(t, NewUnorderedPair(a, b), NewUnorderedPair(b, a))
}
