package xmrto

import (
	"encoding/json"
	"strconv"
)

// Per-version field mapping tables: canonical field name to remote JSON key.
// Each table is plain data selected by version lookup; an empty key means
// the field does not exist in that version and stays unset in the record.

type orderKeys struct {
	uuid          string
	state         string
	outAddress    string
	outAmount     string
	usesLightning string
}

var orderKeysByVersion = map[Version]orderKeys{
	V2: {
		uuid:       "uuid",
		state:      "state",
		outAddress: "btc_dest_address",
		outAmount:  "btc_amount",
	},
	V3: {
		uuid:          "uuid",
		state:         "state",
		outAddress:    "btc_dest_address",
		outAmount:     "btc_amount",
		usesLightning: "uses_lightning",
	},
}

type statusKeys struct {
	state                    string
	outAmount                string
	outAmountPartial         string
	outAddress               string
	secondsTillTimeout       string
	createdAt                string
	inOutRate                string
	paymentSubaddress        string
	inAmount                 string
	inAmountRemaining        string
	inConfirmationsRemaining string

	// v2 only
	paymentAddress           string
	paymentIntegratedAddress string
	paymentIDLong            string
	paymentIDShort           string

	// v3 only
	usesLightning string
	payments      string
}

var statusKeysByVersion = map[Version]statusKeys{
	V2: {
		state:                    "state",
		outAmount:                "btc_amount",
		outAmountPartial:         "btc_amount_partial",
		outAddress:               "btc_dest_address",
		secondsTillTimeout:       "seconds_till_timeout",
		createdAt:                "created_at",
		inOutRate:                "xmr_price_btc",
		paymentSubaddress:        "xmr_receiving_subaddress",
		inAmount:                 "xmr_amount_total",
		inAmountRemaining:        "xmr_amount_remaining",
		inConfirmationsRemaining: "xmr_num_confirmations_remaining",
		paymentAddress:           "xmr_receiving_address",
		paymentIntegratedAddress: "xmr_receiving_integrated_address",
		paymentIDLong:            "xmr_required_payment_id_long",
		paymentIDShort:           "xmr_required_payment_id_short",
	},
	V3: {
		state:                    "state",
		outAmount:                "btc_amount",
		outAmountPartial:         "btc_amount_partial",
		outAddress:               "btc_dest_address",
		secondsTillTimeout:       "seconds_till_timeout",
		createdAt:                "created_at",
		inOutRate:                "incoming_price_btc",
		paymentSubaddress:        "receiving_subaddress",
		inAmount:                 "incoming_amount_total",
		inAmountRemaining:        "remaining_amount_incoming",
		inConfirmationsRemaining: "incoming_num_confirmations_remaining",
		usesLightning:            "uses_lightning",
		payments:                 "payments",
	},
}

type priceKeys struct {
	outAmount                string
	inAmount                 string
	inOutRate                string
	inConfirmationsRemaining string
}

var priceKeysByVersion = map[Version]priceKeys{
	V2: {
		outAmount:                "btc_amount",
		inAmount:                 "xmr_amount_total",
		inOutRate:                "xmr_price_btc",
		inConfirmationsRemaining: "xmr_num_confirmations_remaining",
	},
	V3: {
		outAmount:                "btc_amount",
		inAmount:                 "incoming_amount_total",
		inOutRate:                "incoming_price_btc",
		inConfirmationsRemaining: "incoming_num_confirmations_remaining",
	},
}

type routesKeys struct {
	numRoutes          string
	successProbability string
}

// Routes exist in v3 only; there is no v2 entry on purpose.
var routesKeysByVersion = map[Version]routesKeys{
	V3: {
		numRoutes:          "num_routes",
		successProbability: "success_probability",
	},
}

type parametersKeys struct {
	price             string
	upperLimit        string
	lowerLimit        string
	zeroConfMaxAmount string
	zeroConfEnabled   string

	// v3 only
	lnUpperLimit string
	lnLowerLimit string
}

var parametersKeysByVersion = map[Version]parametersKeys{
	V2: {
		price:             "price",
		upperLimit:        "upper_limit",
		lowerLimit:        "lower_limit",
		zeroConfMaxAmount: "zero_conf_max_amount",
		zeroConfEnabled:   "zero_conf_enabled",
	},
	V3: {
		price:             "price",
		upperLimit:        "upper_limit",
		lowerLimit:        "lower_limit",
		zeroConfMaxAmount: "zero_conf_max_amount",
		zeroConfEnabled:   "zero_conf_enabled",
		lnUpperLimit:      "ln_upper_limit",
		lnLowerLimit:      "ln_lower_limit",
	},
}

// Structural extraction helpers. All of them treat an empty key (field not
// mapped for the version) and a missing key the same way: nil, the unset
// sentinel. They never mutate the payload.

func getString(data map[string]any, key string) *string {
	if key == "" {
		return nil
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// getAmount accepts both representations the two API versions use: decimal
// strings (v3) and JSON numbers (v2). Numbers arrive as json.Number because
// the transport decodes with UseNumber, so the wire text survives intact.
func getAmount(data map[string]any, key string) *Amount {
	if key == "" {
		return nil
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case string:
		a := Amount(n)
		return &a
	case json.Number:
		a := Amount(n.String())
		return &a
	}
	return nil
}

func getInt(data map[string]any, key string) *int64 {
	if key == "" {
		return nil
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil
		}
		return &i
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil
		}
		return &i
	}
	return nil
}

func getFloat(data map[string]any, key string) *float64 {
	if key == "" {
		return nil
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	n, ok := v.(json.Number)
	if !ok {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	return &f
}

func getBool(data map[string]any, key string) *bool {
	if key == "" {
		return nil
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func getState(data map[string]any, key string) *OrderState {
	s := getString(data, key)
	if s == nil {
		return nil
	}
	state := OrderState(*s)
	return &state
}

func getPayments(data map[string]any, key string) []Payment {
	if key == "" {
		return nil
	}
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	payments := make([]Payment, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			payments = append(payments, Payment(m))
		}
	}
	return payments
}
