package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefundPolicySettings stores tenant-level refund policy configuration.
// This model is the authoritative source for refund percentage defaults
// across cancellation and return workflows.
//
// The return flat rate is configurable because historical call paths used
// two different rates; the documented default is 90% refund with a 10%
// retention fee, with 65% available as the alternate rate.
type RefundPolicySettings struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;unique"`

	// Cancellation refund percentage baseline and clamp bounds
	BasePercentage float64 `json:"basePercentage" gorm:"type:decimal(5,2);default:75"`
	MinPercentage  float64 `json:"minPercentage" gorm:"type:decimal(5,2);default:25"`
	MaxPercentage  float64 `json:"maxPercentage" gorm:"type:decimal(5,2);default:100"`

	// Flat refund rate applied to a returned item's line total
	ReturnRefundPercent          float64 `json:"returnRefundPercent" gorm:"type:decimal(5,2);default:90"`
	AlternateReturnRefundPercent float64 `json:"alternateReturnRefundPercent" gorm:"type:decimal(5,2);default:65"`
	UseAlternateReturnRate       bool    `json:"useAlternateReturnRate" gorm:"default:false"`

	// Customer-facing policy text (can contain HTML)
	PolicyText string `json:"policyText" gorm:"type:text"`

	// Audit fields
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	UpdatedBy string         `json:"updatedBy,omitempty" gorm:"type:varchar(255)"`
}

func (RefundPolicySettings) TableName() string {
	return "refund_policy_settings"
}

// EffectiveReturnRate returns the flat return refund percentage in force
func (s *RefundPolicySettings) EffectiveReturnRate() float64 {
	if s.UseAlternateReturnRate {
		return s.AlternateReturnRefundPercent
	}
	return s.ReturnRefundPercent
}

// UpdateRefundPolicyRequest is the request body for updating refund policy settings
type UpdateRefundPolicyRequest struct {
	BasePercentage               *float64 `json:"basePercentage,omitempty"`
	MinPercentage                *float64 `json:"minPercentage,omitempty"`
	MaxPercentage                *float64 `json:"maxPercentage,omitempty"`
	ReturnRefundPercent          *float64 `json:"returnRefundPercent,omitempty"`
	AlternateReturnRefundPercent *float64 `json:"alternateReturnRefundPercent,omitempty"`
	UseAlternateReturnRate       *bool    `json:"useAlternateReturnRate,omitempty"`
	PolicyText                   string   `json:"policyText,omitempty"`
}

// DefaultRefundPolicySettings returns the default settings for a new tenant
func DefaultRefundPolicySettings(tenantID string) *RefundPolicySettings {
	return &RefundPolicySettings{
		ID:                           uuid.New(),
		TenantID:                     tenantID,
		BasePercentage:               75,
		MinPercentage:                25,
		MaxPercentage:                100,
		ReturnRefundPercent:          90,
		AlternateReturnRefundPercent: 65,
		UseAlternateReturnRate:       false,
		PolicyText:                   "",
	}
}
