package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/brightwire/knxlogic/pkg/health"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/types"
)

// Protocol-adaptor block types make blocking outbound HTTP calls. None of
// them ever calls out from inside Execute: Execute only reads the previous
// result out of remanent state and, if due, submits a fresh fetch to the
// I/O worker pool via ctx.Submit. The fetch's own goroutine only posts the
// new remanent state (ctx.PostState); the instance's next execution reads
// that state and sets its output from it.
//
// Alongside the data fetch, each adaptor probes its endpoint's reachability
// with a health.HTTPChecker and folds the result through health.Status's
// consecutive-failure hysteresis, so a single dropped request doesn't flap
// the endpoint's reported health. The settled verdict surfaces on the
// operational surface under a per-block-type "adaptor:*" component.

func init() {
	Register(&types.BlockType{
		Key:      "protocol.sonos_volume",
		Name:     "Sonos Volume",
		Category: "protocol",
		Version:  "1.0",
		Inputs: map[string]types.PortSchema{
			"endpoint": {Name: "endpoint", Type: types.PortString},
			"volume":   {Name: "volume", Type: types.PortInt},
		},
		Outputs:  map[string]types.PortSchema{"applied": {Name: "applied", Type: types.PortBool}},
		Remanent: true,
		Help:     "Pushes a volume level to a Sonos zone player's HTTP control API.",
		Body:     executeSonosVolume,
	})

	Register(&types.BlockType{
		Key:      "protocol.epex_price",
		Name:     "EPEX Day-Ahead Price",
		Category: "protocol",
		Version:  "1.0",
		Inputs: map[string]types.PortSchema{
			"endpoint": {Name: "endpoint", Type: types.PortString},
		},
		Outputs: map[string]types.PortSchema{
			"price": {Name: "price", Type: types.PortReal},
		},
		Remanent: true,
		Periodic: true,
		Interval: time.Hour,
		Help:     "Polls the EPEX day-ahead price endpoint for the current hour's price.",
		Body:     executeEPEXPrice,
	})

	Register(&types.BlockType{
		Key:      "protocol.weather",
		Name:     "Weather Lookup",
		Category: "protocol",
		Version:  "1.0",
		Inputs: map[string]types.PortSchema{
			"endpoint": {Name: "endpoint", Type: types.PortString},
		},
		Outputs: map[string]types.PortSchema{
			"temperature": {Name: "temperature", Type: types.PortReal},
		},
		Remanent: true,
		Periodic: true,
		Interval: 15 * time.Minute,
		Help:     "Polls a weather API for the current outdoor temperature.",
		Body:     executeWeather,
	})
}

// adaptorHealthConfig governs the hysteresis applied to every adaptor's
// reachability probe: two consecutive failures before reporting unhealthy,
// and a start-period grace so a daemon that just booted doesn't immediately
// report every adaptor down before its first successful poll.
var adaptorHealthConfig = health.Config{
	Timeout:     health.DefaultFetchTimeout,
	Retries:     2,
	StartPeriod: 30 * time.Second,
}

var (
	adaptorHealthMu sync.Mutex
	adaptorStatuses = map[string]*health.Status{}
)

// checkAdaptorHealth probes endpoint's reachability with a fresh HTTPChecker
// — built per call since distinct instances of the same block type may
// point at distinct endpoints and run concurrently on different ioworker
// goroutines — folds the result through the hysteresis Status cached under
// component, and, once past the start period, reports the settled verdict
// via metrics.UpdateComponent so it shows up on /health and /ready.
func checkAdaptorHealth(ctx context.Context, component, endpoint string) {
	result := health.NewHTTPChecker(endpoint).Check(ctx)

	adaptorHealthMu.Lock()
	status, ok := adaptorStatuses[component]
	if !ok {
		status = health.NewStatus()
		adaptorStatuses[component] = status
	}
	status.Update(result, adaptorHealthConfig)
	settled := !status.InStartPeriod(adaptorHealthConfig)
	healthy := status.Healthy
	adaptorHealthMu.Unlock()

	if settled {
		metrics.UpdateComponent(component, healthy, result.Message)
	}
}

// adaptorState is the shared remanent shape for protocol-adaptor blocks: the
// last value fetched and whether a fetch is currently in flight, so a burst
// of periodic triggers while a slow call is outstanding doesn't pile up
// duplicate HTTP requests.
type adaptorState struct {
	Value    float64 `json:"value"`
	Fetching bool    `json:"fetching"`
}

func loadAdaptorState(ctx types.ExecContext) adaptorState {
	var st adaptorState
	if blob := ctx.State(); blob != nil {
		_ = json.Unmarshal(blob, &st)
	}
	return st
}

// saveAdaptorState is called on the run goroutine, from inside Execute.
func saveAdaptorState(ctx types.ExecContext, st adaptorState) {
	blob, err := json.Marshal(st)
	if err != nil {
		return
	}
	ctx.SetState(blob)
}

// postAdaptorState is saveAdaptorState's counterpart for use inside a
// Submit job, which runs on an I/O worker goroutine rather than the run
// goroutine.
func postAdaptorState(ctx types.ExecContext, st adaptorState) {
	blob, err := json.Marshal(st)
	if err != nil {
		return
	}
	ctx.PostState(blob)
}

func executeSonosVolume(ctx types.ExecContext) error {
	endpoint := ctx.Input("endpoint").S
	volume, _ := ctx.Input("volume").AsFloat64()
	if endpoint == "" {
		return fmt.Errorf("sonos_volume: endpoint input is empty")
	}

	st := loadAdaptorState(ctx)
	if st.Fetching {
		ctx.SetOutput("applied", types.BoolValue(false))
		return nil
	}
	st.Fetching = true
	saveAdaptorState(ctx, st)

	url := fmt.Sprintf("%s?volume=%d", endpoint, int(volume))
	submitted := ctx.Submit(func() {
		fetchCtx, cancel := context.WithTimeout(context.Background(), health.DefaultFetchTimeout)
		defer cancel()
		_ = health.FetchJSON(fetchCtx, url, nil)
		checkAdaptorHealth(fetchCtx, "adaptor:sonos_volume", endpoint)
		postAdaptorState(ctx, adaptorState{Value: volume})
	})
	if !submitted {
		st.Fetching = false
		saveAdaptorState(ctx, st)
		ctx.SetOutput("applied", types.BoolValue(false))
		return fmt.Errorf("sonos_volume: I/O worker pool is saturated")
	}

	ctx.SetOutput("applied", types.BoolValue(true))
	return nil
}

func executeEPEXPrice(ctx types.ExecContext) error {
	endpoint := ctx.Input("endpoint").S
	if endpoint == "" {
		return fmt.Errorf("epex_price: endpoint input is empty")
	}

	st := loadAdaptorState(ctx)
	ctx.SetOutput("price", types.RealValue(st.Value))
	if st.Fetching {
		return nil
	}
	st.Fetching = true
	saveAdaptorState(ctx, st)

	submitted := ctx.Submit(func() {
		var body struct {
			Price float64 `json:"price"`
		}
		fetchCtx, cancel := context.WithTimeout(context.Background(), health.DefaultFetchTimeout)
		defer cancel()
		if err := health.FetchJSON(fetchCtx, endpoint, &body); err == nil {
			postAdaptorState(ctx, adaptorState{Value: body.Price})
		} else {
			postAdaptorState(ctx, adaptorState{Value: st.Value})
		}
		checkAdaptorHealth(fetchCtx, "adaptor:epex_price", endpoint)
	})
	if !submitted {
		saveAdaptorState(ctx, adaptorState{Value: st.Value})
	}
	return nil
}

func executeWeather(ctx types.ExecContext) error {
	endpoint := ctx.Input("endpoint").S
	if endpoint == "" {
		return fmt.Errorf("weather: endpoint input is empty")
	}

	st := loadAdaptorState(ctx)
	ctx.SetOutput("temperature", types.RealValue(st.Value))
	if st.Fetching {
		return nil
	}
	st.Fetching = true
	saveAdaptorState(ctx, st)

	submitted := ctx.Submit(func() {
		var body struct {
			Temperature float64 `json:"temperature"`
		}
		fetchCtx, cancel := context.WithTimeout(context.Background(), health.DefaultFetchTimeout)
		defer cancel()
		if err := health.FetchJSON(fetchCtx, endpoint, &body); err == nil {
			postAdaptorState(ctx, adaptorState{Value: body.Temperature})
		} else {
			postAdaptorState(ctx, adaptorState{Value: st.Value})
		}
		checkAdaptorHealth(fetchCtx, "adaptor:weather", endpoint)
	})
	if !submitted {
		saveAdaptorState(ctx, adaptorState{Value: st.Value})
	}
	return nil
}
