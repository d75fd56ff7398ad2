/*
Package scheduler implements the execution scheduler (component C4): the
single-threaded cooperative actor that turns address changes, periodic
timers, and manual triggers into block executions.

All mutable scheduler and instance state — the instance table, the run
queue, per-instance execution bookkeeping — is touched only by the one
goroutine started by Start. Every other goroutine (the bus telegram
subscription, the periodic ticker, and every public method below) only ever
hands a closure to that goroutine's job channel and waits for the result;
this is the "command channel" the wider design talks about, and it is what
makes the instance table safe to access without a mutex.

A trigger arriving for an instance that is already executing, or already
queued, is coalesced rather than stacked: Scheduler keeps at most one
pending run per instance, re-queuing to the tail if a trigger arrived while
the instance was mid-execution. Jobs delivered to the run goroutine's
channel are drained in a batch between executions, so a burst of rapid
input changes for one instance collapses into a single pending run instead
of one run per telegram.

A block's own panic or returned error is caught, logged, and counted
against a sliding one-minute failure window that a successful run clears;
three consecutive failures in that window auto-disable the instance. None of this ever stops the scheduler itself or
the other instances it runs.
*/
package scheduler
