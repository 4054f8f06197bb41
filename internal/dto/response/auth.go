package response

import (
	"time"

	"storefront/internal/data/entity"
)

type UserResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           *string         `json:"phone,omitempty"`
	Address         *string         `json:"address,omitempty"`
	Role            entity.UserRole `json:"role"`
	IsEmailVerified bool            `json:"is_email_verified"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AuthResponse pairs a bearer credential with the user's public projection.
// Scope is "temporary" right after registration and "access" otherwise.
type AuthResponse struct {
	Token     string       `json:"token"`
	Scope     string       `json:"scope"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func UserToResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:              user.ID.String(),
		Name:            user.Name,
		Email:           user.Email,
		Phone:           user.Phone,
		Address:         user.Address,
		Role:            user.Role,
		IsEmailVerified: user.EmailVerified,
		CreatedAt:       user.CreatedAt,
	}
}
