/*
Package knxdriver defines the boundary between the runtime and a real KNX/IP
interface: a Driver sends a wire-encoded value to a group address and
delivers inbound telegrams it observes on the bus back to the runtime.

No production Driver ships in this module — wiring a real KNXnet/IP or
TPUART backend is a deployment concern. Simulator is an in-memory Driver
used by tests and when the config sets `knx.driver: simulate`, so the rest of the stack
(gateway, scheduler, bus) can be exercised without real bus hardware.
*/
package knxdriver
