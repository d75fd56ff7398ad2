/*
Package registry implements the block registry (component C2): discovery of
block types, both compiled-in built-ins and user-supplied modules, and
instantiation of block instances from a type key.

Built-in types register themselves at package init via Register. User
types are loaded from a configured custom-blocks directory as Go plugin
modules (buildmode=plugin .so files); a directory scan isolates failures
per file — one bad module never aborts the scan, and is logged and skipped.
Reloading (LoadFromPath) atomically replaces the entire prior set of
user-supplied types in one step, so a reload never leaves a mix of old and
new user modules visible.

A reload drops a type whose module is gone even if a persisted block
instance still refers to it. The registry never deletes such an instance;
it only reports resolve failures, leaving the scheduler and
storage layers responsible for retaining that instance as unloadable
rather than dropping it (invariant 1).
*/
package registry
