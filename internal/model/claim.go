package model

// Claim statuses.
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

// Verification statuses.
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
)

type Claim struct {
	ID                 int64     `json:"id"`
	LostItemID         int64     `json:"lost_item_id"`
	FoundItemID        int64     `json:"found_item_id"`
	ClaimantID         int64     `json:"claimant_id"`
	VerificationAnswer string    `json:"verification_answer"`
	ProofPhotoURL      string    `json:"proof_photo_url"`
	VerificationStatus string    `json:"verification_status"`
	Status             string    `json:"status"`
	CreatedAt          Timestamp `json:"created_at"`
	VerifiedAt         Timestamp `json:"verified_at"`
	ClaimantName       string    `json:"claimant_name"`
	LostItem           *Item     `json:"lost_item"`
	FoundItem          *Item     `json:"found_item"`
}

// FinderID returns the owner of the found item, or 0 when the found item
// was not embedded in the response.
func (c Claim) FinderID() int64 {
	if c.FoundItem == nil {
		return 0
	}
	return c.FoundItem.UserID
}

func (c Claim) HasProof() bool {
	return c.ProofPhotoURL != ""
}

type Message struct {
	ID           int64     `json:"id"`
	ClaimID      int64     `json:"claim_id"`
	SenderID     int64     `json:"sender_id"`
	ReceiverID   int64     `json:"receiver_id"`
	Content      string    `json:"content"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    Timestamp `json:"created_at"`
	SenderName   string    `json:"sender_name"`
	ReceiverName string    `json:"receiver_name"`
}
