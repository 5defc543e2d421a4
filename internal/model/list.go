package model

// ShareStatusActive is the only share status; sharing takes effect immediately.
const ShareStatusActive = "active"

// Item is one entry of a shopping list.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// ShoppingList is the full state of a list as submitted by a caller.
type ShoppingList struct {
	UserID string `json:"userId"`
	ListID string `json:"listId"`
	Name   string `json:"name"`
	Items  []Item `json:"items"`
	Order  int    `json:"order"`
}

// ListView is a list as seen by one caller, either its owner or a
// partner reaching it through a shared link.
type ListView struct {
	ListID      string   `json:"listId"`
	Name        string   `json:"name"`
	Items       []Item   `json:"items"`
	Order       int      `json:"order"`
	IsShared    *bool    `json:"isShared"`
	SharedWith  []string `json:"sharedWith"`
	ShareStatus string   `json:"shareStatus"`
	IsOwner     bool     `json:"isOwner"`
}

// ResolvedTarget is where a (userId, listId) pair actually points: the
// caller's own list, or the owner's list behind a shared link.
type ResolvedTarget struct {
	OwnerID     string
	ListID      string
	DisplayName string
	// Order is the caller's ordering value: the header order for owners,
	// the link order for partners. Nil when none is stored.
	Order *int
	// OwnerOrder is the order stored on the owner's header.
	OwnerOrder *int
	IsOwner    bool
	IsShared   bool
	// Partners lists the users the owner shared with. Empty for partners.
	Partners []string
	// LinkSK is the sort key of the caller's link row when IsOwner is false.
	LinkSK string
}
