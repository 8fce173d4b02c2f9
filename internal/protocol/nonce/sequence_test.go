package nonce

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCombinedSequenceRollsIntoOverflow(t *testing.T) {
	c := CombinedSequenceNumber{overflow: 0, sequence: 0xffffffff}

	o, s, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, uint16(0), o)
	require.Equal(t, uint32(0xffffffff), s)

	o, s, err = c.Next()
	require.NoError(t, err)
	require.Equal(t, uint16(1), o)
	require.Equal(t, uint32(0), s)
}

func TestCombinedSequenceExhausted(t *testing.T) {
	c := CombinedSequenceNumber{overflow: maxOverflow, sequence: 0xffffffff}
	_, _, err := c.Next()
	require.True(t, errors.Is(err, ErrExhausted))
}
