package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlatformID_IsValid(t *testing.T) {
	valid := []string{"12345678", "123456789", "00000000"}
	invalid := []string{"", "1234567", "1234567890", "12345678a", " 12345678", "１２３４５６７８"}

	for _, v := range valid {
		assert.True(t, PlatformID(v).IsValid(), v)
	}
	for _, v := range invalid {
		assert.False(t, PlatformID(v).IsValid(), v)
	}
}

func TestNormalizePlatformID(t *testing.T) {
	assert.Equal(t, PlatformID("123456789"), NormalizePlatformID(" 123456789 "))
	assert.Equal(t, PlatformID(""), NormalizePlatformID("abc-123"))
	assert.Equal(t, PlatformID(""), NormalizePlatformID("не указано"))
}

func TestNewTelegramID(t *testing.T) {
	id, err := NewTelegramID(42)
	assert.NoError(t, err)
	assert.Equal(t, "42", id.String())

	_, err = NewTelegramID(0)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
