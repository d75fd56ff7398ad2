package knxdriver

// Inbound is one telegram observed on the real KNX bus, ready to be
// written into the runtime's Address Bus with origin knx-in.
type Inbound struct {
	Address string
	DPT     string
	Wire    string
}

// Driver is the outbound/inbound boundary to a real KNX/IP interface.
type Driver interface {
	// Send transcodes and writes wire to address on the real bus.
	Send(address, dpt, wire string) error

	// Inbound returns the channel inbound telegrams arrive on. Closed when
	// the driver is closed.
	Inbound() <-chan Inbound

	Close() error
}
