package net

import (
	stdnet "net"

	"github.com/smallnest/goframe"
)

// FramingConfig configures the optional length-field framing helper.
// LengthFieldOffset/Length/Adjustment follow Netty's LengthFieldBasedFrame
// naming, which goframe mirrors; this exists for protocol implementations
// built on top of this module that want length-prefixed framing without
// hand-rolling a decoder loop. It is not itself part of the core Reactor
// runtime — callers are free to implement a MessageCallback that parses
// framing directly out of the shared Buffer instead.
type FramingConfig struct {
	LengthFieldOffset   int
	LengthFieldLength   int
	LengthAdjustment    int
	InitialBytesToStrip int
}

// NewFramedConn wraps conn in a goframe.FrameConn using a symmetric
// length-field encoder/decoder built from cfg.
func NewFramedConn(conn stdnet.Conn, cfg FramingConfig) goframe.FrameConn {
	encoderConfig := goframe.EncoderConfig{
		ByteOrder:                        goframe.BigEndian,
		LengthFieldLength:                cfg.LengthFieldLength,
		LengthAdjustment:                 cfg.LengthAdjustment,
		LengthIncludesLengthFieldLength:  false,
	}
	decoderConfig := goframe.DecoderConfig{
		ByteOrder:           goframe.BigEndian,
		LengthFieldOffset:   cfg.LengthFieldOffset,
		LengthFieldLength:   cfg.LengthFieldLength,
		LengthAdjustment:    cfg.LengthAdjustment,
		InitialBytesToStrip: cfg.InitialBytesToStrip,
	}
	return goframe.NewLengthFieldFrameConn(encoderConfig, decoderConfig, conn)
}
