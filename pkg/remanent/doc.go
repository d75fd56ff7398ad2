/*
Package remanent implements the remanent store (component C5): periodic and
shutdown checkpointing of every block instance's opt-in state blob, and its
restore at startup.

Store polls the scheduler every 60 seconds by default (the interval is
configurable) for a snapshot of each remanent-capable instance's in-memory
state and writes it through storage.ConfigStore, whose bbolt transactions
are all-or-nothing per snapshot — a half-written bbolt
transaction never commits, so the previous snapshot is retained
automatically without any extra validation here.

Restore is a direct read-through to the store; Scheduler calls it once per
instance at load time, before that instance's first execution, and the
instance's own Execute body is what actually interprets the blob (there is
no separate "restore" hook on types.ExecContext — State()/SetState() cover
both directions).
*/
package remanent
