package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/types"
)

// fakeExecContext is a minimal in-memory types.ExecContext for exercising a
// block body directly, without a running scheduler.
type fakeExecContext struct {
	inputs  map[string]types.Value
	outputs map[string]types.Value
	state   []byte
	pool    chan func()
}

func newFakeExecContext() *fakeExecContext {
	return &fakeExecContext{
		inputs:  map[string]types.Value{},
		outputs: map[string]types.Value{},
		pool:    make(chan func(), 8),
	}
}

func (f *fakeExecContext) Input(port string) types.Value    { return f.inputs[port] }
func (f *fakeExecContext) SetOutput(port string, v types.Value) { f.outputs[port] = v }
func (f *fakeExecContext) TriggeredBy() string               { return string(types.TriggerManual) }
func (f *fakeExecContext) State() []byte                     { return f.state }
func (f *fakeExecContext) SetState(blob []byte)              { f.state = blob }
func (f *fakeExecContext) Debug(key string, value interface{}) {}
func (f *fakeExecContext) Submit(fn func()) bool {
	select {
	case f.pool <- fn:
		return true
	default:
		return false
	}
}
func (f *fakeExecContext) PostOutput(port string, v types.Value) { f.outputs[port] = v }
func (f *fakeExecContext) PostState(blob []byte)                 { f.state = blob }

func (f *fakeExecContext) runSubmitted(t *testing.T) {
	t.Helper()
	select {
	case fn := <-f.pool:
		fn()
	case <-time.After(time.Second):
		t.Fatal("expected a submitted job")
	}
}

func TestEPEXPriceFetchesAndStoresValue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]float64{"price": 31.2})
	}))
	defer ts.Close()

	ctx := newFakeExecContext()
	ctx.inputs["endpoint"] = types.StringValue(ts.URL)

	require.NoError(t, executeEPEXPrice(ctx))
	assert.Equal(t, types.RealValue(0), ctx.outputs["price"])

	ctx.runSubmitted(t)

	var st adaptorState
	require.NoError(t, json.Unmarshal(ctx.state, &st))
	assert.Equal(t, 31.2, st.Value)
}

func TestEPEXPriceMissingEndpointFails(t *testing.T) {
	ctx := newFakeExecContext()
	err := executeEPEXPrice(ctx)
	assert.Error(t, err)
}

func TestEPEXPriceRecordsAdaptorReachability(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]float64{"price": 10})
	}))
	defer ts.Close()

	ctx := newFakeExecContext()
	ctx.inputs["endpoint"] = types.StringValue(ts.URL)

	require.NoError(t, executeEPEXPrice(ctx))
	ctx.runSubmitted(t)

	adaptorHealthMu.Lock()
	status, ok := adaptorStatuses["adaptor:epex_price"]
	adaptorHealthMu.Unlock()
	require.True(t, ok)
	assert.True(t, status.Healthy)
	assert.Equal(t, 0, status.ConsecutiveFailures)
}

func TestSonosVolumeRecordsAdaptorFailureOnUnreachableEndpoint(t *testing.T) {
	ctx := newFakeExecContext()
	ctx.inputs["endpoint"] = types.StringValue("http://127.0.0.1:1")
	ctx.inputs["volume"] = types.IntValue(10)

	require.NoError(t, executeSonosVolume(ctx))
	ctx.runSubmitted(t)

	adaptorHealthMu.Lock()
	status, ok := adaptorStatuses["adaptor:sonos_volume"]
	adaptorHealthMu.Unlock()
	require.True(t, ok)
	assert.Equal(t, 1, status.ConsecutiveFailures)
}

func TestSonosVolumeSubmitsRequest(t *testing.T) {
	var gotVolume string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVolume = r.URL.Query().Get("volume")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	ctx := newFakeExecContext()
	ctx.inputs["endpoint"] = types.StringValue(ts.URL)
	ctx.inputs["volume"] = types.IntValue(42)

	require.NoError(t, executeSonosVolume(ctx))
	assert.Equal(t, types.BoolValue(true), ctx.outputs["applied"])

	ctx.runSubmitted(t)
	assert.Equal(t, "42", gotVolume)
}
