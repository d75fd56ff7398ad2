/*
Package opsurface implements the operational surface (component C10): the
HTTP server exposing /health, /ready, and /metrics for the daemon. It is
deliberately narrow — no block, binding, or address management lives here,
and this module ships no other HTTP API that offers it; cmd/knxlogic
exposes those operations only as one-shot CLI commands.

The handler shape (a *http.ServeMux wrapping health/ready/metrics) follows
the teacher's own HealthServer.
*/
package opsurface
