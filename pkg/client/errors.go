// Package client provides a typed client for the exchange rate daemon's
// HTTP API and websocket rate stream.
package client

import "errors"

var (
	// ErrUnsupportedScheme indicates the base URL is neither http nor https.
	ErrUnsupportedScheme = errors.New("base URL scheme must be http or https")
)
