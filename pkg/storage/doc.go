/*
Package storage provides the logic runtime's two persistence backends.

SQLiteAddressStore holds the address bus's canonical records in a single
sqlite table, the literal schema the external interface commits to —
addresses are tabular by nature, and sqlite gives SQL access to them without
a server process. BoltConfigStore holds everything else (block instances,
bindings, pages, remanent snapshots) as whole-document JSON blobs in bbolt
buckets, matching the scale of a single installation's configuration.

Export/Import in backup.go bundle both stores plus custom block sources into
one self-contained JSON document, written atomically via a temp-file-then-
rename so a crash mid-write never corrupts the previous backup.
*/
package storage
