package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToInt(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 7, 7},
		{"uint8", uint8(3), 3},
		{"float", 2.9, 2},
		{"string", "42", 42},
		{"bytes", []byte("12"), 12},
		{"garbage", "abc", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToInt(tt.in))
		})
	}
}

func TestToBool(t *testing.T) {
	assert.True(t, ToBool(true))
	assert.True(t, ToBool("true"))
	assert.True(t, ToBool("TRUE"))
	assert.True(t, ToBool("1"))
	assert.True(t, ToBool(int64(1)))
	assert.True(t, ToBool([]byte("true")))

	assert.False(t, ToBool(""))
	assert.False(t, ToBool("yes"))
	assert.False(t, ToBool(2))
	assert.False(t, ToBool(3.0))
}
