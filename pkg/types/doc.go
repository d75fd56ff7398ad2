/*
Package types defines the data model shared across the logic runtime.

It holds the five main entities the rest of the system is built from: Address
(the bus's canonical record of a KNX group address or an internal IKO),
BlockType (a loaded code artifact), BlockInstance (one configured occurrence
of a type, with its port values and remanent state; its bindings live in the
binding table), Binding (the link between a port and an address) and
Telegram (a recorded value change), plus the Page and RemanentSnapshot
records.

# Ownership

The address bus exclusively owns Address values. The block registry owns
BlockType values. The scheduler owns BlockInstance values. The binding table
is a pure index over instance ports and addresses and owns no entities of
its own.

# Value representation

A bus value is a tagged union (Value) of bool, int64, float64, string or
nil. Coercion rules for comparing values of different declared types live
in ValuesEqual and CoerceTo — see the KNX logic runtime specification for
the exact equality table.
*/
package types
