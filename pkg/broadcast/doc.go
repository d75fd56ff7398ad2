/*
Package broadcast implements the telegram broadcaster (component C6): a
bounded ring buffer of recently observed value changes plus a fan-out to
push subscribers.

Unlike the general-purpose event broker this is adapted from, a subscriber
that falls behind is not silently skipped — it is disconnected. A dashboard
client that can't keep up with the telegram stream needs to know its feed
has a gap and reconnect/replay from the ring, rather than silently missing
updates forever.
*/
package broadcast
