// Package net implements the event-driven networking runtime: Channel,
// EventLoop, the Timer/TimerQueue family, EventLoopThread(Pool), and the
// Acceptor/Connection glue built on top of them. One EventLoop owns one
// goroutine ("one loop per thread"); every Channel registered on a loop
// may only be touched from that loop's own goroutine.
package net
