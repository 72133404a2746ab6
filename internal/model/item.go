package model

import "encoding/json"

// ItemKind distinguishes the two item collections; both share one shape.
type ItemKind string

const (
	KindLost  ItemKind = "lost"
	KindFound ItemKind = "found"
)

// Item statuses.
const (
	ItemStatusActive    = "active"
	ItemStatusAvailable = "available"
	ItemStatusClaimed   = "claimed"
	ItemStatusFound     = "found"
	ItemStatusReturned  = "returned"
)

// Categories offered by the report forms.
var Categories = []string{"phone", "wallet", "bag", "keys", "clothing", "electronics", "books", "other"}

type Item struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	SchoolID    int64     `json:"school_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Color       string    `json:"color"`
	Brand       string    `json:"brand"`
	Location    string    `json:"location"`
	LostDate    Timestamp `json:"lost_date"`
	FoundDate   Timestamp `json:"found_date"`
	PhotoURL    string    `json:"photo_url"`
	Status      string    `json:"status"`
	CreatedAt   Timestamp `json:"created_at"`
	// Populated on lost items.
	UserName string `json:"user_name,omitempty"`
	// Populated on found items.
	FinderName string `json:"finder_name,omitempty"`
}

// ItemReport is the form payload for reporting a lost or found item.
// LostDate and the verification fields only apply to lost items.
type ItemReport struct {
	Title                string
	Description          string
	Category             string
	Color                string
	Brand                string
	Location             string
	LostDate             string
	VerificationQuestion string
	VerificationAnswer   string
	Photo                []byte
	PhotoName            string
}

// Match is an AI-suggested pairing of one of my lost items with a found item.
type Match struct {
	ID              int64     `json:"id"`
	LostItemID      int64     `json:"lost_item_id"`
	FoundItemID     int64     `json:"found_item_id"`
	ConfidenceScore float64   `json:"confidence_score"`
	MatchReasons    string    `json:"match_reasons"`
	Status          string    `json:"status"`
	CreatedAt       Timestamp `json:"created_at"`
	LostItem        *Item     `json:"lost_item"`
	FoundItem       *Item     `json:"found_item"`
}

// Reasons decodes MatchReasons, which the API sends as a JSON array inside
// a string. Malformed input yields nil.
func (m Match) Reasons() []string {
	if m.MatchReasons == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(m.MatchReasons), &out); err != nil {
		return nil
	}
	return out
}

// ConfidenceLevel buckets ConfidenceScore (0-100) as high, medium or low.
func (m Match) ConfidenceLevel() string {
	switch {
	case m.ConfidenceScore >= 80:
		return "high"
	case m.ConfidenceScore >= 60:
		return "medium"
	}
	return "low"
}
