package auth

import "time"

// MinimumAge is the youngest a user may be to consent to data processing
// on their own.
const MinimumAge = 15

// User represents a registered account
type User struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	CanBeContacted  bool       `json:"can_be_contacted"`
	CanDataBeShared bool       `json:"can_data_be_shared"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Age returns the user's age in whole years at the given instant, or -1
// when no birth date is recorded.
func (u *User) Age(now time.Time) int {
	if u.BirthDate == nil {
		return -1
	}

	age := now.Year() - u.BirthDate.Year()
	anniversary := u.BirthDate.AddDate(age, 0, 0)
	if anniversary.After(now) {
		age--
	}
	return age
}

// OldEnough reports whether the user meets the minimum age requirement.
// Users without a recorded birth date are rejected.
func (u *User) OldEnough(now time.Time) bool {
	age := u.Age(now)
	return age >= MinimumAge
}

// RefreshToken is the stored form of an opaque refresh token. The
// plaintext never touches the database.
type RefreshToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Valid reports whether the token can still be exchanged
func (t *RefreshToken) Valid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// Context holds the authenticated caller for the duration of a request
type Context struct {
	User *User
}

// SignupRequest is the payload for account registration
type SignupRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=150"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	BirthDate       string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	CanBeContacted  bool   `json:"can_be_contacted"`
	CanDataBeShared bool   `json:"can_data_be_shared"`
}

// LoginRequest is the payload for credential login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateProfileRequest updates the caller's consent flags and contact email
type UpdateProfileRequest struct {
	Email           *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	CanBeContacted  *bool   `json:"can_be_contacted,omitempty"`
	CanDataBeShared *bool   `json:"can_data_be_shared,omitempty"`
}

// TokenPair is the response body for login and refresh
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
