package models

import "errors"

// Requests for the relay HTTP endpoints. Defined in domain for consistency and reuse.

var (
	errBothSizing = errors.New("sizing: percentage and fixed_amount are mutually exclusive")
	errNoSizing   = errors.New("sizing: one of percentage or fixed_amount is required")
)

type StartLoginRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required,min=4,max=8,numeric"`
}

type VerifyPasswordRequest struct {
	Password string `json:"password" validate:"required,min=1"`
}

type ListenRequest struct {
	ChannelID int64 `json:"channel_id" validate:"required"`
}

type MessagesRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

// SizingRequest carries exactly one of the two variants.
type SizingRequest struct {
	Percentage  *float64 `json:"percentage,omitempty" validate:"omitempty,gt=0,lte=100"`
	FixedAmount *float64 `json:"fixed_amount,omitempty" validate:"omitempty,gt=0"`
}

// Sizing resolves the request into the domain union, rejecting none-or-both.
func (r SizingRequest) Sizing() (Sizing, error) {
	switch {
	case r.Percentage != nil && r.FixedAmount != nil:
		return Sizing{}, errBothSizing
	case r.Percentage != nil:
		return NewPercentageSizing(*r.Percentage)
	case r.FixedAmount != nil:
		return NewFixedSizing(*r.FixedAmount)
	default:
		return Sizing{}, errNoSizing
	}
}

type AddAccountRequest struct {
	Name   string        `json:"name" validate:"required,min=1,max=64"`
	SSID   string        `json:"ssid" validate:"required,min=1"`
	Sizing SizingRequest `json:"sizing" validate:"required"`
}

type UpdateAccountRequest struct {
	SSID   *string        `json:"ssid,omitempty" validate:"omitempty,min=1"`
	Sizing *SizingRequest `json:"sizing,omitempty"`
}

type RenameAccountRequest struct {
	NewName string `json:"new_name" validate:"required,min=1,max=64"`
}

type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
