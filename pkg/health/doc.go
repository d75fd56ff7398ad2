/*
Package health tracks the reachability of the external HTTP services that
protocol-adaptor block types depend on (a Sonos zone player, the EPEX
day-ahead price endpoint, a weather API). It is not container or process
health checking — the checker/status hysteresis here is the teacher's
pattern, repurposed to decide when a flaky endpoint is reported unhealthy
instead of deciding when to replace a container.

Checker.Check performs one HTTP probe; Status accumulates consecutive
successes and failures with the same hysteresis the teacher used for
container liveness, so one dropped request does not flip the reported
verdict. The verdict is only reported: the protocol-adaptor blocks keep
fetching on every run whatever it says. FetchJSON is the
data-fetching half protocol-adaptor blocks actually call from inside an
ioworker.Pool job: a probe tells you an endpoint is up, FetchJSON is what
gets the block its price or weather reading.
*/
package health
