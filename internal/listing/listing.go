// Package listing filters and edits item lists fetched from the API.
package listing

import "github.com/dukerupert/reunite/internal/model"

func filter(items []model.Item, keep func(model.Item) bool) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// AvailableFound keeps found items that can still be claimed.
func AvailableFound(items []model.Item) []model.Item {
	return filter(items, func(it model.Item) bool { return it.Status == model.ItemStatusAvailable })
}

// ActiveLost keeps lost items that are still being looked for.
func ActiveLost(items []model.Item) []model.Item {
	return filter(items, func(it model.Item) bool { return it.Status == model.ItemStatusActive })
}

// Owned keeps items reported by userID.
func Owned(items []model.Item, userID int64) []model.Item {
	return filter(items, func(it model.Item) bool { return it.UserID == userID })
}

// ClaimCandidates are the user's own lost items that a claim may point at.
// Items without a status are included.
func ClaimCandidates(lost []model.Item, userID int64) []model.Item {
	return filter(lost, func(it model.Item) bool {
		return it.UserID == userID && (it.Status == model.ItemStatusActive || it.Status == "")
	})
}

func CanDelete(it model.Item, userID int64) bool {
	return userID != 0 && it.UserID == userID
}

// Without returns items minus the one with the given id.
func Without(items []model.Item, id int64) []model.Item {
	return filter(items, func(it model.Item) bool { return it.ID != id })
}

// Find returns the item with the given id.
func Find(items []model.Item, id int64) (model.Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}
