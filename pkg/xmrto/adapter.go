package xmrto

import (
	"fmt"

	"github.com/veiloq/xmrto-client/pkg/connection"
)

// The adapter turns raw remote JSON into canonical records using the
// per-version mapping tables. Extraction is purely structural: missing keys
// leave the field nil, the input payload is never mutated, and nothing here
// touches the network.
//
// When the payload carries a remote error indicator, the adapter still
// builds a best-effort record from whatever fields are present and returns
// both. Callers must check the error before trusting the record.

// payloadError lifts the remote's own error fields out of a payload. The
// request URL is unknown at this layer; the gateway fills it in.
func payloadError(data map[string]any) *connection.Error {
	if data == nil {
		return nil
	}
	errVal, ok := data["error"]
	if !ok || errVal == nil {
		return nil
	}
	message := fmt.Sprintf("%v", errVal)
	if errMsg, ok := data["error_msg"]; ok && errMsg != nil {
		message = fmt.Sprintf("%v: %v", errVal, errMsg)
	}
	return connection.NewError(connection.KindAPIError, message)
}

// BuildOrder builds an Order record from a raw payload.
func BuildOrder(data map[string]any, version Version) (*Order, *connection.Error) {
	remoteErr := payloadError(data)

	keys, ok := orderKeysByVersion[version]
	if !ok || data == nil {
		return nil, remoteErr
	}

	order := &Order{
		UUID:          getString(data, keys.uuid),
		State:         getState(data, keys.state),
		OutAddress:    getString(data, keys.outAddress),
		OutAmount:     getAmount(data, keys.outAmount),
		UsesLightning: getBool(data, keys.usesLightning),
	}
	return order, remoteErr
}

// BuildStatus builds a Status record from a raw payload.
func BuildStatus(data map[string]any, version Version) (*Status, *connection.Error) {
	remoteErr := payloadError(data)

	keys, ok := statusKeysByVersion[version]
	if !ok || data == nil {
		return nil, remoteErr
	}

	status := &Status{
		State:                    getState(data, keys.state),
		OutAmount:                getAmount(data, keys.outAmount),
		OutAmountPartial:         getAmount(data, keys.outAmountPartial),
		OutAddress:               getString(data, keys.outAddress),
		SecondsTillTimeout:       getInt(data, keys.secondsTillTimeout),
		CreatedAt:                getString(data, keys.createdAt),
		InOutRate:                getAmount(data, keys.inOutRate),
		PaymentSubaddress:        getString(data, keys.paymentSubaddress),
		InAmount:                 getAmount(data, keys.inAmount),
		InAmountRemaining:        getAmount(data, keys.inAmountRemaining),
		InConfirmationsRemaining: getInt(data, keys.inConfirmationsRemaining),
		PaymentAddress:           getString(data, keys.paymentAddress),
		PaymentIntegratedAddress: getString(data, keys.paymentIntegratedAddress),
		PaymentIDLong:            getString(data, keys.paymentIDLong),
		PaymentIDShort:           getString(data, keys.paymentIDShort),
		UsesLightning:            getBool(data, keys.usesLightning),
		Payments:                 getPayments(data, keys.payments),
	}
	return status, remoteErr
}

// BuildPrice builds a Price record from a raw payload.
func BuildPrice(data map[string]any, version Version) (*Price, *connection.Error) {
	remoteErr := payloadError(data)

	keys, ok := priceKeysByVersion[version]
	if !ok || data == nil {
		return nil, remoteErr
	}

	price := &Price{
		OutAmount:                getAmount(data, keys.outAmount),
		InAmount:                 getAmount(data, keys.inAmount),
		InOutRate:                getAmount(data, keys.inOutRate),
		InConfirmationsRemaining: getInt(data, keys.inConfirmationsRemaining),
	}
	return price, remoteErr
}

// BuildRoutes builds a Routes record from a raw payload. Routes do not
// exist in v2: the combination yields (nil, nil), not an error.
func BuildRoutes(data map[string]any, version Version) (*Routes, *connection.Error) {
	remoteErr := payloadError(data)

	keys, ok := routesKeysByVersion[version]
	if !ok || data == nil {
		return nil, remoteErr
	}

	routes := &Routes{
		NumRoutes:          getInt(data, keys.numRoutes),
		SuccessProbability: getFloat(data, keys.successProbability),
	}
	return routes, remoteErr
}

// BuildParameters builds a Parameters record from a raw payload.
func BuildParameters(data map[string]any, version Version) (*Parameters, *connection.Error) {
	remoteErr := payloadError(data)

	keys, ok := parametersKeysByVersion[version]
	if !ok || data == nil {
		return nil, remoteErr
	}

	parameters := &Parameters{
		Price:             getAmount(data, keys.price),
		UpperLimit:        getAmount(data, keys.upperLimit),
		LowerLimit:        getAmount(data, keys.lowerLimit),
		ZeroConfMaxAmount: getAmount(data, keys.zeroConfMaxAmount),
		ZeroConfEnabled:   getBool(data, keys.zeroConfEnabled),
		LNUpperLimit:      getAmount(data, keys.lnUpperLimit),
		LNLowerLimit:      getAmount(data, keys.lnLowerLimit),
	}
	return parameters, remoteErr
}
