package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// SetClient records the caller address and agent for audit entries.
func (r *LoginRequest) SetClient(ip, userAgent string) { r.IP, r.UserAgent = ip, userAgent }

// RegisterRequest is the student self-signup payload. The optional matching
// attributes seed the student profile used by the dashboard.
type RegisterRequest struct {
	Email          string  `json:"email" validate:"required,email,max=254"`
	Password       string  `json:"password" validate:"required,min=8,max=72"`
	FullName       string  `json:"full_name" validate:"required,max=120"`
	EducationLevel string  `json:"education_level" validate:"omitempty,max=64"`
	Gender         string  `json:"gender" validate:"omitempty,oneof='All Genders' Male Female Other"`
	Community      *string `json:"community,omitempty" validate:"omitempty,max=200"`
	IP             string  `json:"-"`
	UserAgent      string  `json:"-"`
}

// SetClient records the caller address and agent for audit entries.
func (r *RegisterRequest) SetClient(ip, userAgent string) { r.IP, r.UserAgent = ip, userAgent }

// HasProfile reports whether any matching attribute was supplied.
func (r RegisterRequest) HasProfile() bool {
	return r.EducationLevel != "" || r.Gender != "" || r.Community != nil
}

// Session is the token pair handed out by login, signup and refresh.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// LoginResponse returns the issued tokens and user info.
type LoginResponse struct {
	Session
	User UserInfo `json:"user"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// SetClient records the caller address and agent for audit entries.
func (r *RefreshTokenRequest) SetClient(ip, userAgent string) { r.IP, r.UserAgent = ip, userAgent }

// RefreshTokenResponse returns the rotated token pair.
type RefreshTokenResponse = Session

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// UserInfo describes the authenticated user in responses. Profile is only
// set for students that saved matching preferences.
type UserInfo struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	Role     UserRole        `json:"role"`
	Profile  *StudentProfile `json:"profile,omitempty"`
}

// NewUserInfo projects the public fields of u.
func NewUserInfo(u *User) UserInfo {
	return UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// RefreshToken is a persisted refresh session. Rotation revokes the
// presented token and issues a new row.
type RefreshToken struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`
	// Token is the raw value handed to the client; only TokenHash is stored.
	Token     string     `db:"-" json:"-"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// Usable reports whether the token can still be exchanged at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
