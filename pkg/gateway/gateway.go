package gateway

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/bus"
	"github.com/brightwire/knxlogic/pkg/knxdriver"
	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/types"
)

// FailedSend records one rejected outbound send for inspection.
type FailedSend struct {
	At      time.Time
	Address string
	Err     string
}

const maxFailedSendHistory = 64

// Gateway is the outbound KNX gateway (component C7).
type Gateway struct {
	bus    *bus.Bus
	driver knxdriver.Driver

	mu      sync.Mutex
	history []FailedSend

	log zerolog.Logger
}

// New creates a Gateway. driver may be nil, in which case sends to external
// addresses always fail with io-failure (no driver configured).
func New(b *bus.Bus, driver knxdriver.Driver) *Gateway {
	return &Gateway{bus: b, driver: driver, log: log.WithComponent("gateway")}
}

// Send routes value to address, transcoding and forwarding to the external
// driver if address is a group address, or writing directly to the bus with
// the given origin otherwise. There is no retry.
func (g *Gateway) Send(address string, value types.Value, origin types.Origin) error {
	addr, err := g.bus.Get(address)
	if err != nil {
		return err
	}

	if !addr.IsExternal() {
		return g.bus.Write(address, value, origin)
	}

	wire, err := encodeWire(value)
	if err != nil {
		g.recordFailure(address, err)
		return err
	}

	if g.driver == nil {
		err := types.NewError(types.KindIOFailure, "no KNX driver configured for external address %s", address)
		g.recordFailure(address, err)
		return err
	}

	if err := g.driver.Send(address, addr.DPT, wire); err != nil {
		wrapped := types.WrapError(types.KindIOFailure, err, "KNX driver rejected send to %s", address)
		g.recordFailure(address, wrapped)
		metrics.UpdateComponent("knx-driver", false, wrapped.Error())
		return wrapped
	}
	metrics.UpdateComponent("knx-driver", true, "sending")

	return g.bus.Write(address, value, origin)
}

// PumpInbound relays every telegram the configured driver observes onto the
// bus with origin knx-in, until the driver's Inbound channel is closed by
// Close. Meant to run in its own goroutine; a nil driver makes this a no-op
// so callers can always spawn it unconditionally.
func (g *Gateway) PumpInbound() {
	if g.driver == nil {
		return
	}
	for tg := range g.driver.Inbound() {
		if err := g.receiveInbound(tg); err != nil {
			g.log.Warn().Str("address", tg.Address).Str("wire", tg.Wire).Err(err).Msg("inbound telegram dropped")
		}
	}
}

// receiveInbound is PumpInbound's per-telegram body, split out so tests can
// drive it without a live driver loop.
func (g *Gateway) receiveInbound(tg knxdriver.Inbound) error {
	addr, err := g.bus.Get(tg.Address)
	if err != nil {
		return err
	}
	value, err := decodeWire(tg.Wire, dptKind(addr.DPT))
	if err != nil {
		return err
	}
	return g.bus.Write(tg.Address, value, types.OriginKNXIn)
}

func (g *Gateway) recordFailure(address string, err error) {
	metrics.GatewaySendFailuresTotal.Inc()
	g.log.Warn().Str("address", address).Err(err).Msg("gateway send failed")

	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append(g.history, FailedSend{At: time.Now(), Address: address, Err: err.Error()})
	if len(g.history) > maxFailedSendHistory {
		g.history = g.history[len(g.history)-maxFailedSendHistory:]
	}
}

// FailedSends returns a snapshot of recently recorded failed sends.
func (g *Gateway) FailedSends() []FailedSend {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]FailedSend, len(g.history))
	copy(out, g.history)
	return out
}
