package fx

import (
	"time"

	"github.com/shopspring/decimal"
)

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

type passageDTO struct {
	Station    string          `json:"station"`
	Direction  string          `json:"direction"`
	HourOffset int             `json:"hourOffset"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
}

type countDTO struct {
	Station    string `json:"station"`
	Direction  string `json:"direction"`
	HourOffset int    `json:"hourOffset"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity"`
}
