/*
Package log provides structured logging for the logic runtime using zerolog.

A single global Logger is configured once via Init and shared across
packages. Component loggers (WithComponent, WithInstance, WithAddress) attach
context fields — the owning package, a block instance ID, or a bus address
key — so log lines from the scheduler, bus, and binding table can be
filtered and correlated without passing a logger through every call.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Str("instance_id", id).Msg("instance disabled after repeated failures")

	addrLog := log.WithAddress("1/2/3")
	addrLog.Debug().Msg("telegram suppressed: unchanged value")
*/
package log
