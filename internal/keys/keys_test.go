package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/shared-lists/internal/kv"
)

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "USER#u1", Partition("u1"))
	assert.Equal(t, kv.Key{PK: "USER#u1", SK: "LIST#groceries"}, HeaderKey("u1", "groceries"))
	assert.Equal(t, kv.Key{PK: "USER#u2", SK: "LIST#SHARED#u1#groceries"}, SharedLinkKey("u2", "u1", "groceries"))
	assert.Equal(t, kv.Key{PK: "USER#u1", SK: "LIST#groceries#ITEM#0007"}, ItemKey("u1", "groceries", 7))
	assert.Equal(t, "LIST#groceries#ITEM#", ItemPrefix("groceries"))
	assert.Equal(t, "9999", ItemID(MaxItems-1))
}

func TestItemIDFromSK(t *testing.T) {
	tests := []struct {
		sk   string
		want string
	}{
		{"LIST#a#ITEM#0003", "0003"},
		{"LIST#a#ITEM#x#ITEM#0001", "0001"},
		{"LIST#a", ""},
		{"LIST#a#ITEM#", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ItemIDFromSK(tt.sk), tt.sk)
	}
}

func TestListIDFromHeaderSK(t *testing.T) {
	assert.Equal(t, "groceries", ListIDFromHeaderSK("LIST#groceries"))
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateListID("groceries"))
	assert.NoError(t, ValidateListID("SHAREDX"))
	assert.ErrorIs(t, ValidateListID(""), ErrInvalidID)
	assert.ErrorIs(t, ValidateListID("  "), ErrInvalidID)
	assert.ErrorIs(t, ValidateListID("a#b"), ErrInvalidID)
	assert.ErrorIs(t, ValidateListID("SHARED"), ErrInvalidID)

	assert.NoError(t, ValidateUserID("7c9e6679-7425-40de-944b-e07fc1f90ae7"))
	assert.ErrorIs(t, ValidateUserID(""), ErrInvalidID)
	assert.ErrorIs(t, ValidateUserID("u#1"), ErrInvalidID)
}
