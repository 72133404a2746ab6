package model

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	SchoolID  *int64    `json:"school_id"`
	CreatedAt Timestamp `json:"created_at"`
}

// Roles.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

func (u User) Name() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AuthResult is returned by login and signup.
type AuthResult struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

type School struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	JoinCode    string    `json:"join_code"`
	CreatedBy   int64     `json:"created_by"`
	MemberCount int       `json:"member_count"`
	CreatedAt   Timestamp `json:"created_at"`
}
