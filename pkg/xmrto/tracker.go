package xmrto

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/xmrto-client/pkg/connection"
	"github.com/veiloq/xmrto-client/pkg/logging"
)

// Tracker owns the canonical state of a single order: its secret key, the
// latest Status snapshot and the last error. It is a passive mirror of what
// the remote reports; it never infers state transitions locally.
//
// A Tracker is driven from one goroutine at a time (poll, mutate, sleep,
// repeat). Run one Tracker per order; Trackers share nothing but may share
// a Connection.
type Tracker struct {
	api    *API
	logger logging.Logger

	uuid   string
	state  OrderState
	order  *Order
	status *Status
	err    *connection.Error
}

// NewTracker creates a Tracker for a fresh or existing order. For an
// existing order, pass its secret key to the first PollStatus call.
func NewTracker(api *API, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Tracker{
		api:    api,
		logger: logger,
		state:  StateToBeCreated,
	}
}

// UUID returns the order's secret key, empty until the order exists.
func (t *Tracker) UUID() string {
	return t.uuid
}

// State returns the most recently observed order state.
func (t *Tracker) State() OrderState {
	return t.state
}

// Err returns the error recorded by the last operation, if any. When it is
// non-nil the snapshot fields are stale and kept for display only.
func (t *Tracker) Err() *connection.Error {
	return t.err
}

// CreateOrder creates a standard order. Exactly one of btcAmount and
// xmrAmount must be a positive decimal; the destination address must be
// non-empty. On success the Tracker immediately polls once so the richer
// Status snapshot is populated.
func (t *Tracker) CreateOrder(ctx context.Context, outAddress, btcAmount, xmrAmount string) *connection.Error {
	if outAddress == "" {
		return connection.NewError(connection.KindMissingArgument, "destination address is required")
	}

	amount, currency, argErr := pickAmount(btcAmount, xmrAmount)
	if argErr != nil {
		return argErr
	}

	t.logger.Debug("creating order",
		logging.String("destination", outAddress),
		logging.String("amount", amount),
		logging.String("currency", string(currency)),
	)

	order, err := t.api.CreateOrder(ctx, outAddress, amount, currency)
	t.absorbOrder(order, err)
	if err != nil {
		return err
	}

	return t.PollStatus(ctx, "")
}

// CreateLightningOrder creates an order paying out a lightning invoice and
// polls once, like CreateOrder.
func (t *Tracker) CreateLightningOrder(ctx context.Context, lnInvoice string) *connection.Error {
	if lnInvoice == "" {
		return connection.NewError(connection.KindMissingArgument, "lightning invoice is required")
	}

	order, err := t.api.CreateLightningOrder(ctx, lnInvoice)
	t.absorbOrder(order, err)
	if err != nil {
		return err
	}

	return t.PollStatus(ctx, "")
}

// absorbOrder copies the creation record into the tracker. The uuid is
// assigned exactly once by the remote and never changes afterwards.
func (t *Tracker) absorbOrder(order *Order, err *connection.Error) {
	t.order = order
	t.err = err
	if order == nil {
		return
	}
	if order.UUID != nil {
		t.uuid = *order.UUID
	}
	if order.State != nil {
		t.state = *order.State
	}
}

// PollStatus fetches a fresh Status snapshot. An empty uuid means "use the
// stored one"; a non-empty uuid overrides and is kept. The snapshot is
// replaced wholesale; nothing from the previous snapshot is merged in. On
// error the previous snapshot stays in place for display continuity, the
// error is recorded, and the state must be treated as stale.
func (t *Tracker) PollStatus(ctx context.Context, uuid string) *connection.Error {
	if uuid != "" {
		t.uuid = uuid
	}
	if t.uuid == "" {
		return connection.NewError(connection.KindMissingArgument, "order secret key is required")
	}

	status, err := t.api.OrderStatus(ctx, t.uuid)
	t.err = err
	if status != nil {
		t.status = status
		if status.State != nil {
			t.state = *status.State
			if !t.state.Valid() {
				t.logger.Warn("remote reported an unknown order state",
					logging.String("state", string(t.state)),
					logging.String("uuid", t.uuid),
				)
			}
		}
	}
	return err
}

// ConfirmPartialPayment polls first and only proceeds when the freshly
// observed state is exactly UNDERPAID. In any other state this is a no-op
// that logs a warning and reports confirmed=false with the error unchanged.
func (t *Tracker) ConfirmPartialPayment(ctx context.Context, uuid string) (bool, *connection.Error) {
	if err := t.PollStatus(ctx, uuid); err != nil {
		return false, err
	}

	if t.state != StateUnderpaid {
		t.logger.Warn("order is not ready for a partial payment confirmation",
			logging.String("state", string(t.state)),
			logging.String("uuid", t.uuid),
		)
		return false, t.err
	}

	confirmed, err := t.api.ConfirmPartialPayment(ctx, t.uuid)
	if err != nil {
		t.err = err
		t.logger.Error("partial payment was not confirmed", logging.Error(err))
		return confirmed, err
	}

	t.logger.Info("partial payment confirmed", logging.String("uuid", t.uuid))
	return confirmed, nil
}

// FollowOptions configures the follow loop.
type FollowOptions struct {
	// Interval between two polls.
	Interval time.Duration

	// MaxTimeoutRetries is the number of TIMED_OUT or PURGED observations
	// tolerated before the loop gives up. With the default of 1 the loop
	// stops on the second such observation; zero means the first one stops
	// it. Use DefaultFollowOptions for the default budget.
	MaxTimeoutRetries int

	// StopOnFirstObservation makes the loop poll exactly once and return
	// regardless of state. Used for one-shot status checks.
	StopOnFirstObservation bool

	// OnUpdate, when set, receives a snapshot after every poll.
	OnUpdate func(Snapshot)
}

// DefaultFollowOptions matches the remote tooling's defaults.
func DefaultFollowOptions() FollowOptions {
	return FollowOptions{
		Interval:          3 * time.Second,
		MaxTimeoutRetries: 1,
	}
}

// Follow polls the order at a fixed interval until the state is BTC_SENT,
// an error is recorded, or the timeout-retry budget is exhausted.
// Cancellation is cooperative: the context is checked between iterations
// only, never mid-request, and the last snapshot stays retrievable after
// cancellation.
func (t *Tracker) Follow(ctx context.Context, opts FollowOptions) *connection.Error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultFollowOptions().Interval
	}
	budget := opts.MaxTimeoutRetries

	for {
		if err := t.PollStatus(ctx, ""); err != nil {
			return err
		}
		if opts.OnUpdate != nil {
			opts.OnUpdate(t.Snapshot())
		}

		if t.state == StateBTCSent {
			return nil
		}
		if opts.StopOnFirstObservation {
			return nil
		}

		if t.state == StateTimedOut || t.state == StatePurged {
			if budget <= 0 {
				t.logger.Info("giving up on order",
					logging.String("state", string(t.state)),
					logging.String("uuid", t.uuid),
				)
				return nil
			}
			budget--
		}

		select {
		case <-ctx.Done():
			t.logger.Debug("follow loop cancelled", logging.String("uuid", t.uuid))
			return nil
		case <-time.After(opts.Interval):
		}
	}
}

// pickAmount enforces "a positive amount in exactly one currency".
func pickAmount(btcAmount, xmrAmount string) (string, Currency, *connection.Error) {
	if btcAmount == "" && xmrAmount == "" {
		return "", "", connection.NewError(connection.KindMissingArgument, "an amount in BTC or XMR is required")
	}
	if btcAmount != "" && xmrAmount != "" {
		return "", "", connection.NewError(connection.KindMissingArgument, "provide an amount in either BTC or XMR, not both")
	}

	amount, currency := btcAmount, CurrencyBTC
	if btcAmount == "" {
		amount, currency = xmrAmount, CurrencyXMR
	}

	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return "", "", connection.NewError(connection.KindMissingArgument, "amount must be a positive decimal")
	}

	return amount, currency, nil
}

// Snapshot is a point-in-time copy of a Tracker for rendering and
// branching. It stays valid after the Tracker moves on.
type Snapshot struct {
	UUID   string
	State  OrderState
	Order  *Order
	Status *Status
	Err    *connection.Error
}

// Snapshot returns a copy of the tracker's current view of the order.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		UUID:   t.uuid,
		State:  t.state,
		Order:  t.order,
		Status: t.status,
		Err:    t.err,
	}
}

// MarshalJSON renders the set fields of the snapshot under the v3 wire
// names, which is the rendering the remote tooling prints while following
// an order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	data := map[string]any{}

	if s.UUID != "" {
		data["uuid"] = s.UUID
	}
	if s.State != "" {
		data["state"] = string(s.State)
	}

	if st := s.Status; st != nil {
		putString(data, "btc_dest_address", st.OutAddress)
		putAmount(data, "btc_amount", st.OutAmount)
		putAmount(data, "btc_amount_partial", st.OutAmountPartial)
		putString(data, "receiving_subaddress", st.PaymentSubaddress)
		putString(data, "xmr_receiving_address", st.PaymentAddress)
		putString(data, "xmr_receiving_integrated_address", st.PaymentIntegratedAddress)
		putAmount(data, "incoming_amount_total", st.InAmount)
		putAmount(data, "remaining_amount_incoming", st.InAmountRemaining)
		putAmount(data, "incoming_price_btc", st.InOutRate)
		putString(data, "created_at", st.CreatedAt)
		if st.SecondsTillTimeout != nil {
			data["seconds_till_timeout"] = *st.SecondsTillTimeout
		}
		if st.InConfirmationsRemaining != nil && *st.InConfirmationsRemaining > 0 {
			data["incoming_num_confirmations_remaining"] = *st.InConfirmationsRemaining
		}
		if len(st.Payments) > 0 {
			data["payments"] = st.Payments
		}
	}

	if s.Err != nil {
		data["error"] = s.Err.Error()
	}

	return json.Marshal(data)
}

// String renders the snapshot as compact JSON.
func (s Snapshot) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}
