package model

type QRCode struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	LostItemID  *int64    `json:"lost_item_id"`
	Code        string    `json:"code"`
	QRImageURL  string    `json:"qr_image_url"`
	ContactInfo string    `json:"contact_info"`
	CreatedAt   Timestamp `json:"created_at"`
	LostItem    *Item     `json:"lost_item"`
}

// QRInfo is the public view of a scanned code.
type QRInfo struct {
	Code        string `json:"code"`
	OwnerName   string `json:"owner_name"`
	ContactInfo string `json:"contact_info"`
	LostItem    *Item  `json:"lost_item"`
	Message     string `json:"message"`
}

// ContactRequest is what an anonymous finder submits from a QR tag.
type ContactRequest struct {
	FinderName  string `json:"finder_name"`
	FinderEmail string `json:"finder_email"`
	Message     string `json:"message"`
}

type ContactMessage struct {
	ID          int64     `json:"id"`
	QRCodeID    int64     `json:"qr_code_id"`
	FinderName  string    `json:"finder_name"`
	FinderEmail string    `json:"finder_email"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   Timestamp `json:"created_at"`
}
