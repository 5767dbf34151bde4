package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	encoded := Encode("user-042")
	assert.NotEmpty(t, encoded)

	cursor, err := Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, "user-042", cursor.ID)
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("!!!not base64!!!")
	assert.Error(t, err)

	_, err = Decode(Encode(""))
	assert.Error(t, err)
}

func TestComputePage_NoMore(t *testing.T) {
	items := []string{"a", "b", "c"}

	page, next, hasMore := ComputePage(items, 5, func(s string) string { return s })
	assert.Len(t, page, 3)
	assert.Empty(t, next)
	assert.False(t, hasMore)
}

func TestComputePage_HasMore(t *testing.T) {
	// Fetched limit+1 to probe for a next page.
	items := []string{"a", "b", "c", "d"}

	page, next, hasMore := ComputePage(items, 3, func(s string) string { return s })
	require.Len(t, page, 3)
	assert.True(t, hasMore)

	cursor, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, "c", cursor.ID)
}
