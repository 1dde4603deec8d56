// Package xmrtoclient is a Go client for the XMR.to exchange order API.
//
// XMR.to converts Monero into Bitcoin payments: a client creates an order
// naming a BTC destination and an amount, the service answers with a Monero
// subaddress to fund, and once the funds confirm the service pays the BTC
// side out. This library covers the full order lifecycle against both the
// v2 and v3 revisions of the HTTP API.
//
// Core Features:
//
//   - Order creation for on-chain BTC payouts and lightning invoices
//   - Status tracking with an optional polling follow loop
//   - Partial payment confirmation for underpaid orders
//   - Price quotes, lightning route checks and exchange parameters
//   - QR code retrieval for payment URIs
//   - Rate limiting and a TLS verification fallback with a local CA bundle
//
// The library is split into three layers. Package connection speaks HTTP
// and classifies every failure into a fixed error taxonomy. Package xmrto
// maps each API version's JSON schema onto one set of canonical records
// and exposes one method per remote endpoint through the API type. The
// Tracker on top owns the state of a single order and drives the polling
// loop.
//
// # Errors
//
// Every failure surfaces as a *connection.Error with a stable Kind:
//
//   - KindConnectionFailed: the request never completed
//   - KindResponseUnevaluable: the client gave up evaluating the exchange
//   - KindNoResponse: the response body was empty where one was expected
//   - KindUnexpectedStatus: a status code outside the accepted set
//   - KindMalformedBody: a body that should be JSON but is not
//   - KindEndpointNotFound: a non-JSON 404, typically a wrong URL or version
//   - KindAPIError: the exchange answered with its own error payload
//   - KindMissingArgument: a required argument was absent or invalid
//   - KindUnsupportedAPIVersion: an API version this client does not speak
//
// # Basic Usage
//
//	api, err := xmrto.NewAPI(xmrto.APIOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tracker := xmrto.NewTracker(api, logger)
//	if err := tracker.CreateOrder(ctx, "3K1jSVxYqzqj7c9oLKXC7uJnwgACuTEZrY", "0.001", ""); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Poll until the order is paid out.
//	tracker.Follow(ctx, xmrto.DefaultFollowOptions())
//	fmt.Println(tracker.Snapshot())
//
// Amounts are carried as strings end to end. The v2 API sends numbers and
// the v3 API sends decimal strings; both are preserved verbatim on the
// wire and converted to decimals only on demand, so no precision is lost
// in transit.
package xmrtoclient
