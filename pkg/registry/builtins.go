package registry

import (
	"encoding/json"
	"time"

	"github.com/brightwire/knxlogic/pkg/types"
)

func init() {
	Register(&types.BlockType{
		Key:      "core.not",
		Name:     "NOT",
		Category: "logic",
		Version:  "1.0",
		Inputs:   map[string]types.PortSchema{"in": {Name: "in", Type: types.PortBool}},
		Outputs:  map[string]types.PortSchema{"out": {Name: "out", Type: types.PortBool}},
		Help:     "Inverts a boolean input.",
		Body:     executeNot,
	})

	Register(&types.BlockType{
		Key:      "core.and",
		Name:     "AND",
		Category: "logic",
		Version:  "1.0",
		Inputs: map[string]types.PortSchema{
			"in1": {Name: "in1", Type: types.PortBool},
			"in2": {Name: "in2", Type: types.PortBool},
		},
		Outputs: map[string]types.PortSchema{"out": {Name: "out", Type: types.PortBool}},
		Help:    "Logical AND of two boolean inputs.",
		Body:    executeAnd,
	})

	Register(&types.BlockType{
		Key:      "core.or",
		Name:     "OR",
		Category: "logic",
		Version:  "1.0",
		Inputs: map[string]types.PortSchema{
			"in1": {Name: "in1", Type: types.PortBool},
			"in2": {Name: "in2", Type: types.PortBool},
		},
		Outputs: map[string]types.PortSchema{"out": {Name: "out", Type: types.PortBool}},
		Help:    "Logical OR of two boolean inputs.",
		Body:    executeOr,
	})

	Register(&types.BlockType{
		Key:      "core.threshold",
		Name:     "Threshold",
		Category: "logic",
		Version:  "1.0",
		Inputs: map[string]types.PortSchema{
			"value":     {Name: "value", Type: types.PortReal},
			"threshold": {Name: "threshold", Type: types.PortReal},
		},
		Outputs: map[string]types.PortSchema{"active": {Name: "active", Type: types.PortBool}},
		Help:    "Sets active true when value >= threshold.",
		Body:    executeThreshold,
	})

	Register(&types.BlockType{
		Key:      "core.timer",
		Name:     "Timer",
		Category: "time",
		Version:  "1.0",
		Outputs:  map[string]types.PortSchema{"out": {Name: "out", Type: types.PortBool}},
		Remanent: true,
		Periodic: true,
		Interval: time.Second,
		Help:     "Toggles its output on every periodic trigger; remembers elapsed ticks across restart.",
		Body:     executeTimer,
	})
}

func executeNot(ctx types.ExecContext) error {
	in := ctx.Input("in")
	b, _ := in.AsFloat64()
	ctx.SetOutput("out", types.BoolValue(b == 0))
	return nil
}

func executeAnd(ctx types.ExecContext) error {
	a, _ := ctx.Input("in1").AsFloat64()
	b, _ := ctx.Input("in2").AsFloat64()
	ctx.SetOutput("out", types.BoolValue(a != 0 && b != 0))
	return nil
}

func executeOr(ctx types.ExecContext) error {
	a, _ := ctx.Input("in1").AsFloat64()
	b, _ := ctx.Input("in2").AsFloat64()
	ctx.SetOutput("out", types.BoolValue(a != 0 || b != 0))
	return nil
}

func executeThreshold(ctx types.ExecContext) error {
	value, _ := ctx.Input("value").AsFloat64()
	threshold, _ := ctx.Input("threshold").AsFloat64()
	ctx.SetOutput("active", types.BoolValue(value >= threshold))
	return nil
}

// timerState is the remanent blob for core.timer: the alternating output
// value and the number of periodic ticks observed so far.
type timerState struct {
	Value   bool  `json:"value"`
	Elapsed int64 `json:"elapsed"`
}

func executeTimer(ctx types.ExecContext) error {
	var st timerState
	if blob := ctx.State(); blob != nil {
		if err := json.Unmarshal(blob, &st); err != nil {
			st = timerState{}
		}
	}

	st.Value = !st.Value
	st.Elapsed++

	ctx.SetOutput("out", types.BoolValue(st.Value))

	blob, err := json.Marshal(st)
	if err != nil {
		return err
	}
	ctx.SetState(blob)
	return nil
}
