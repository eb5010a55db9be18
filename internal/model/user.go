package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tier is a user's service plan, governing admission limits and resource quotas.
type Tier string

const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// TierLimits holds the admission and quota numbers for a tier.
type TierLimits struct {
	PerMinute        int
	PerHour          int
	PerDay           int
	MaxDevices       int
	MaxGeofences     int
	MaxRouteWaypoints int
}

// DefaultTierLimits is the built-in tier table; overridable via config.
var DefaultTierLimits = map[Tier]TierLimits{
	TierFree:         {60, 1000, 10000, 5, 10, 10},
	TierBasic:        {300, 10000, 100000, 50, 100, 25},
	TierProfessional: {1000, 50000, 1000000, 500, 1000, 100},
	TierEnterprise:   {5000, 200000, 5000000, 10000, 10000, 500},
}

// User represents a tenant of the system. Token issuance/authentication
// lives outside the core; this model only carries the fields the
// core needs: identity, tier, and lifecycle.
type User struct {
	ID        uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Username  string         `json:"username" gorm:"uniqueIndex;size:50"`
	Password  string         `json:"-" gorm:"size:255"` // hashed password, external auth concern
	Email     string         `json:"email" gorm:"uniqueIndex;size:100"`
	Tier      Tier           `json:"tier" gorm:"size:20;not null;default:'free'"`
	Active    bool           `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Limits returns the tier table entry for t, falling back to free.
func (t Tier) Limits(overrides map[Tier]TierLimits) TierLimits {
	if overrides != nil {
		if l, ok := overrides[t]; ok {
			return l
		}
	}
	if l, ok := DefaultTierLimits[t]; ok {
		return l
	}
	return DefaultTierLimits[TierFree]
}

// Limits returns the tier table entry for this user, falling back to free.
func (u *User) Limits(overrides map[Tier]TierLimits) TierLimits {
	return u.Tier.Limits(overrides)
}

// LoginRequest represents login credentials (external auth contract).
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response (external auth contract).
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
