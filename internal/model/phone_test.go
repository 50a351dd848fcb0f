package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhoneDigits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"(516) 555-0123", "5165550123"},
		{"+15165550123", "5165550123"},
		{"15165550123", "5165550123"},
		{"5165550123", "5165550123"},
		{"516.555.0123", "5165550123"},
		{"", ""},
		// 11 digits not starting with 1 keeps all digits
		{"25165550123", "25165550123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PhoneDigits(tt.in), "input %q", tt.in)
	}
}
