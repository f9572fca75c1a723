package ws

import "errors"

var (
	errExpectedHello = errors.New("ws: first message must be HELLO")
	errBadVersion    = errors.New("ws: unsupported protocol version")
)
