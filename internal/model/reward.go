package model

type Reward struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt Timestamp `json:"created_at"`
}

// PointsSummary is the acting user's total and recent history.
type PointsSummary struct {
	TotalPoints int      `json:"total_points"`
	Rewards     []Reward `json:"rewards"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// ChatTurn is one message of an assistant conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
