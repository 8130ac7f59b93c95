package domain

import (
	"time"

	"github.com/google/uuid"
)

type CouponStatus string

const (
	CouponPending  CouponStatus = "pending"
	CouponApproved CouponStatus = "approved"
	CouponRejected CouponStatus = "rejected"
	CouponSold     CouponStatus = "sold"
)

type Coupon struct {
	ID          uuid.UUID    `json:"coupon_id"`
	SellerID    uuid.UUID    `json:"seller_id"`
	BrandName   string       `json:"brand_name"`
	Code        string       `json:"coupon_code"`
	ExpiryDate  string       `json:"expiry_date"`
	Value       float64      `json:"coupon_value"`
	AskingPrice float64      `json:"asking_price"`
	Status      CouponStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// MaskedCode hides the plaintext code for anyone but the matched buyer.
func (c *Coupon) MaskedCode() string {
	if len(c.Code) > 4 {
		return "****" + c.Code[len(c.Code)-4:]
	}
	return "****"
}
