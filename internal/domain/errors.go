package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateExchange    = errors.New("duplicate exchange id")
	ErrUnknownExchange      = errors.New("unknown exchange id")
	ErrUnsupportedSide      = errors.New("side not supported by exchange")
	ErrUnsupportedOrderType = errors.New("order type not supported by exchange")
	ErrUnsupportedTIF       = errors.New("time in force not supported by exchange")
	ErrNotConnected         = errors.New("exchange not connected")
	ErrWSDisconnect         = errors.New("websocket disconnected")
)
