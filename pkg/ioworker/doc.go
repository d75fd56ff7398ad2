/*
Package ioworker implements the I/O worker pool (component C9): a bounded
set of goroutines that run the blocking calls protocol-adaptor blocks need
(HTTP lookups, a Sonos control request) off the scheduler's single run
goroutine.

A block's Execute body must never block on network I/O itself — the
scheduler has no per-instance goroutine, so a slow call would stall every
other instance. Instead a block hands a closure to types.ExecContext.Submit,
which forwards it to Pool.Submit. The pool runs it on one of a fixed number
of worker goroutines and the block picks the result up on its next
execution (the built-in protocol adaptors post the fetched value into their
remanent state from inside the closure and set their output from that
state when they next run).

The queue is bounded: a submission that would block past the queue
capacity is dropped, logged, and counted rather than applying backpressure
to the caller, since the caller is the scheduler's run goroutine and must
never block.
*/
package ioworker
