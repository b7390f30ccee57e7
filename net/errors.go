package net

import "github.com/pkg/errors"

// ErrLoopClosed is returned by EventLoop.Close when Close has already run
// on that loop.
var ErrLoopClosed = errors.New("net: event loop is closed")

// ErrInvalidTimer is returned by Cancel when given the zero TimerID, which
// names no timer. A TimerID whose timer has already fired or been canceled
// is not rejected; canceling it is a no-op.
var ErrInvalidTimer = errors.New("net: timer id is no longer valid")
