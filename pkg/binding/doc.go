/*
Package binding implements the binding table (component C3): the index from
a block instance's input and output ports to bus addresses.

A binding's address is usually a plain KNX group address or IKO key, but an
input port may instead be written as the BLOCK:<instance>:<port> shorthand,
meaning "whatever IKO backs that instance's output port". The table expands
the shorthand to a concrete IKO address and auto-creates that address on the
bus if it doesn't exist yet (ensure mode) — the shorthand itself is never
persisted, only its expansion.

The table enforces that every output port has at most one writer per address
(KindAmbiguousOutput), that a port can't be bound twice without an explicit
unbind first (KindAlreadyBound), and — except for instances that failed to
load — that the port named in a binding actually exists on the instance's
type (KindUnknownPort). An unloadable instance's bindings are accepted
as-is; they are not re-validated if the instance's type later resolves.
*/
package binding
