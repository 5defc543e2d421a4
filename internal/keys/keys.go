// Package keys builds and parses the partition and sort keys of the list
// table.
//
//	USER#<userId>                      partition of one user
//	LIST#<listId>                      list header owned by the user
//	LIST#SHARED#<ownerId>#<listId>     link to a list another user shared
//	LIST#<listId>#ITEM#<nnnn>          list item, nnnn zero-padded to four digits
package keys

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/shared-lists/internal/kv"
)

// Row kinds stored in the Type attribute.
const (
	KindList       = "List"
	KindSharedLink = "SharedLink"
	KindItem       = "ListItem"
)

const (
	userPrefix    = "USER#"
	listPrefix    = "LIST#"
	sharedSegment = "SHARED"
	itemSegment   = "#ITEM#"
	sep           = "#"

	// MaxItems bounds the number of items a list can hold; item ids are
	// four decimal digits.
	MaxItems = 10000
)

// Sort-key prefixes for partition scans.
const (
	// HeadersPrefix matches every list header, shared link and item of a user.
	HeadersPrefix = listPrefix
	// SharedLinksPrefix matches only shared-link rows.
	SharedLinksPrefix = listPrefix + sharedSegment + sep
)

// ErrInvalidID is returned when a user or list id cannot be embedded in a key.
var ErrInvalidID = errors.New("invalid id")

// Partition returns the partition key of a user.
func Partition(userID string) string {
	return userPrefix + userID
}

// HeaderKey addresses the header row of a list owned by userID.
func HeaderKey(userID, listID string) kv.Key {
	return kv.Key{PK: Partition(userID), SK: listPrefix + listID}
}

// SharedLinkKey addresses the link row in the recipient's partition that
// points at ownerID's list.
func SharedLinkKey(recipientID, ownerID, listID string) kv.Key {
	return kv.Key{
		PK: Partition(recipientID),
		SK: SharedLinksPrefix + ownerID + sep + listID,
	}
}

// ItemPrefix is the sort-key prefix shared by all items of a list.
func ItemPrefix(listID string) string {
	return listPrefix + listID + itemSegment
}

// ItemKey addresses the item at position seq of a list.
func ItemKey(userID, listID string, seq int) kv.Key {
	return kv.Key{PK: Partition(userID), SK: ItemPrefix(listID) + ItemID(seq)}
}

// ItemID formats an item sequence number.
func ItemID(seq int) string {
	return fmt.Sprintf("%04d", seq)
}

// ItemIDFromSK returns the text after the last item segment of a sort key,
// or "" when there is none.
func ItemIDFromSK(sk string) string {
	i := strings.LastIndex(sk, itemSegment)
	if i < 0 {
		return ""
	}
	return sk[i+len(itemSegment):]
}

// ListIDFromHeaderSK returns the list id of a header sort key.
func ListIDFromHeaderSK(sk string) string {
	return strings.TrimPrefix(sk, listPrefix)
}

// ValidateUserID rejects ids that would corrupt the key layout.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("empty user id: %w", ErrInvalidID)
	}
	if strings.Contains(userID, sep) {
		return fmt.Errorf("user id %q contains %q: %w", userID, sep, ErrInvalidID)
	}
	return nil
}

// ValidateListID rejects ids that would collide with link or item keys.
func ValidateListID(listID string) error {
	if strings.TrimSpace(listID) == "" {
		return fmt.Errorf("empty list id: %w", ErrInvalidID)
	}
	if strings.Contains(listID, sep) {
		return fmt.Errorf("list id %q contains %q: %w", listID, sep, ErrInvalidID)
	}
	if listID == sharedSegment {
		return fmt.Errorf("list id %q is reserved: %w", listID, ErrInvalidID)
	}
	return nil
}
