package xmrto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Canonical records are version-independent typed values built from raw
// remote JSON by the adapter in adapter.go. Callers never construct them by
// hand. Fields are pointers: nil means the remote did not report the field
// (or the field does not exist in the API version at all), which is distinct
// from a legitimately-zero value.

// Amount is a monetary amount exactly as reported by the remote API. API v3
// reports decimal strings, v2 reports JSON numbers; either way the wire text
// is preserved verbatim so no precision is lost to a float round-trip.
type Amount string

// String implements fmt.Stringer.
func (a Amount) String() string {
	return string(a)
}

// Decimal converts the amount for arithmetic. The conversion is done on
// demand; the record keeps the wire text.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(a))
}

// Payment is one individual incoming payment towards an order, reported by
// API v3. The remote does not document a stable schema for the entries, so
// they are kept as raw objects.
type Payment map[string]any

// Order is the remote's answer to an order-creation request. The UUID
// doubles as the secret key authorizing status queries for this order and
// is immutable for the order's lifetime.
type Order struct {
	UUID       *string
	State      *OrderState
	OutAmount  *Amount
	OutAddress *string

	// UsesLightning exists in v3 only.
	UsesLightning *bool
}

// Status is a point-in-time snapshot of an order. A new Status entirely
// replaces the previous one on each poll; fields are never merged.
type Status struct {
	State                    *OrderState
	OutAmount                *Amount
	OutAmountPartial         *Amount
	OutAddress               *string
	SecondsTillTimeout       *int64
	CreatedAt                *string
	InOutRate                *Amount
	PaymentSubaddress        *string
	InAmount                 *Amount
	InAmountRemaining        *Amount
	InConfirmationsRemaining *int64

	// v2 only: long-lived receiving addresses and payment IDs.
	PaymentAddress           *string
	PaymentIntegratedAddress *string
	PaymentIDLong            *string
	PaymentIDShort           *string

	// v3 only.
	UsesLightning *bool
	Payments      []Payment
}

// Price is a conversion quote for a given amount.
type Price struct {
	OutAmount                *Amount
	InAmount                 *Amount
	InOutRate                *Amount
	InConfirmationsRemaining *int64
}

// MarshalJSON renders the set fields under the v3 wire names, omitting
// unset ones.
func (p Price) MarshalJSON() ([]byte, error) {
	data := map[string]any{}
	putAmount(data, "btc_amount", p.OutAmount)
	putAmount(data, "incoming_amount_total", p.InAmount)
	putAmount(data, "incoming_price_btc", p.InOutRate)
	if p.InConfirmationsRemaining != nil {
		data["incoming_num_confirmations_remaining"] = *p.InConfirmationsRemaining
	}
	return json.Marshal(data)
}

// Routes describes lightning-route feasibility for an invoice. v3 only.
type Routes struct {
	NumRoutes          *int64
	SuccessProbability *float64
}

// MarshalJSON renders the set fields under the wire names, omitting unset
// ones.
func (r Routes) MarshalJSON() ([]byte, error) {
	data := map[string]any{}
	if r.NumRoutes != nil {
		data["num_routes"] = *r.NumRoutes
	}
	if r.SuccessProbability != nil {
		data["success_probability"] = *r.SuccessProbability
	}
	return json.Marshal(data)
}

// Parameters are the exchange-wide limits and the zero-conf policy.
type Parameters struct {
	Price             *Amount
	UpperLimit        *Amount
	LowerLimit        *Amount
	ZeroConfMaxAmount *Amount
	ZeroConfEnabled   *bool

	// v3 only: lightning-specific limits.
	LNUpperLimit *Amount
	LNLowerLimit *Amount
}

// MarshalJSON renders the set fields under the wire names, omitting unset
// ones.
func (p Parameters) MarshalJSON() ([]byte, error) {
	data := map[string]any{}
	putAmount(data, "price", p.Price)
	putAmount(data, "upper_limit", p.UpperLimit)
	putAmount(data, "lower_limit", p.LowerLimit)
	putAmount(data, "zero_conf_max_amount", p.ZeroConfMaxAmount)
	if p.ZeroConfEnabled != nil {
		data["zero_conf_enabled"] = *p.ZeroConfEnabled
	}
	putAmount(data, "ln_upper_limit", p.LNUpperLimit)
	putAmount(data, "ln_lower_limit", p.LNLowerLimit)
	return json.Marshal(data)
}

func putAmount(data map[string]any, key string, v *Amount) {
	if v != nil {
		data[key] = string(*v)
	}
}

func putString(data map[string]any, key string, v *string) {
	if v != nil {
		data[key] = *v
	}
}
