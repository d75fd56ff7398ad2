/*
Package bus implements the address bus (component C1): the single place
where every external KNX group address and every internal IKO keeps its
canonical last value.

Reads and the address catalog itself are protected by one coarse lock;
writes to distinct addresses are additionally serialized per address key so
a burst of writes to "1/2/3" can't interleave with each other while writes
to "1/2/4" proceed independently. Every write that changes the stored value
publishes a telegram; a block-out write that doesn't change the value is
suppressed to keep the scheduler from being re-triggered by writing back
the value it already had.
*/
package bus
