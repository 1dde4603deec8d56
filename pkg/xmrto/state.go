package xmrto

// OrderState is the lifecycle state of an order as reported by the remote
// API. The client never infers transitions on its own; state is always
// whatever the most recent poll returned.
type OrderState string

const (
	// StateToBeCreated is the local placeholder before the remote has
	// assigned the order.
	StateToBeCreated OrderState = "TO_BE_CREATED"

	// StateUnpaid means the order waits for the incoming payment.
	StateUnpaid OrderState = "UNPAID"

	// StateUnderpaid means a partial payment arrived; the order can be
	// settled early by confirming the partial payment.
	StateUnderpaid OrderState = "UNDERPAID"

	// StatePaidUnconfirmed means the payment arrived and waits for
	// confirmations.
	StatePaidUnconfirmed OrderState = "PAID_UNCONFIRMED"

	// StateBTCSent is the terminal success state.
	StateBTCSent OrderState = "BTC_SENT"

	// StateTimedOut means the order expired before payment completed.
	StateTimedOut OrderState = "TIMED_OUT"

	// StatePurged means the remote removed the order.
	StatePurged OrderState = "PURGED"

	// StateFlaggedDestinationAddress is the terminal failure state for
	// destinations the remote refuses to pay out to.
	StateFlaggedDestinationAddress OrderState = "FLAGGED_DESTINATION_ADDRESS"
)

// Valid reports whether s is one of the states the remote API defines.
func (s OrderState) Valid() bool {
	switch s {
	case StateToBeCreated, StateUnpaid, StateUnderpaid, StatePaidUnconfirmed,
		StateBTCSent, StateTimedOut, StatePurged, StateFlaggedDestinationAddress:
		return true
	}
	return false
}

// Terminal reports whether no further transition can happen from s.
func (s OrderState) Terminal() bool {
	switch s {
	case StateBTCSent, StateTimedOut, StatePurged, StateFlaggedDestinationAddress:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (s OrderState) String() string {
	return string(s)
}
