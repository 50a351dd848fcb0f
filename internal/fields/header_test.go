package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuzzyKey(t *testing.T) {
	assert.Equal(t, "businessname", FuzzyKey("Business Name"))
	assert.Equal(t, "businessname", FuzzyKey("BUSINESS_NAME"))
	assert.Equal(t, "businessname", FuzzyKey("business-name"))
	assert.Equal(t, "phonenumber", FuzzyKey("Phone Number"))
	assert.Equal(t, "", FuzzyKey("---"))
}

func TestMatchHeader(t *testing.T) {
	f, ok := MatchHeader("Business Name")
	require.True(t, ok)
	assert.Equal(t, "business_name", f.Canonical)

	f, ok = MatchHeader("PHONE_NUMBER")
	require.True(t, ok)
	assert.Equal(t, "lead_phone", f.Canonical)

	_, ok = MatchHeader("totally unrelated")
	assert.False(t, ok)
}
