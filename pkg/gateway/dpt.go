package gateway

import (
	"strconv"
	"strings"

	"github.com/brightwire/knxlogic/pkg/types"
)

// encodeWire renders value as the textual wire form the spec defines:
// booleans as "0"/"1", reals with a "." decimal separator, strings
// passed through as UTF-8. The DPT hint is carried alongside for display
// only and never changes the encoding.
func encodeWire(value types.Value) (string, error) {
	switch value.Kind {
	case types.ValueBool:
		if value.B {
			return "1", nil
		}
		return "0", nil
	case types.ValueInt:
		return strconv.FormatInt(value.I, 10), nil
	case types.ValueReal:
		return strconv.FormatFloat(value.R, 'f', -1, 64), nil
	case types.ValueString:
		return value.S, nil
	case types.ValueNull:
		return "", nil
	default:
		return "", types.NewError(types.KindTypeCoercion, "value kind %q has no wire representation", value.Kind)
	}
}

// decodeWire is encodeWire's inverse: it parses wire text arriving from the
// field into a Value of kind. Unlike encoding — where the Value already
// carries its own Kind — decoding a bare wire string has no type
// information of its own, so the caller supplies the target kind derived
// from the address's DPT hint via dptKind.
func decodeWire(wire string, kind types.ValueKind) (types.Value, error) {
	switch kind {
	case types.ValueBool:
		switch wire {
		case "0":
			return types.BoolValue(false), nil
		case "1":
			return types.BoolValue(true), nil
		default:
			return types.Value{}, types.NewError(types.KindTypeCoercion, "invalid boolean wire value %q", wire)
		}
	case types.ValueInt:
		i, err := strconv.ParseInt(wire, 10, 64)
		if err != nil {
			return types.Value{}, types.WrapError(types.KindTypeCoercion, err, "invalid integer wire value %q", wire)
		}
		return types.IntValue(i), nil
	case types.ValueReal:
		f, err := strconv.ParseFloat(wire, 64)
		if err != nil {
			return types.Value{}, types.WrapError(types.KindTypeCoercion, err, "invalid real wire value %q", wire)
		}
		return types.RealValue(f), nil
	case types.ValueString:
		return types.StringValue(wire), nil
	default:
		return types.Value{}, types.NewError(types.KindTypeCoercion, "value kind %q has no wire representation", kind)
	}
}

// dptKind maps a KNX datapoint-type's main number to the Value kind its
// wire text decodes to: 1.x is a single-bit boolean, 5.x/6.x/7.x/8.x/13.x
// are integer formats, 9.x/14.x are float formats, 16.x is a character
// string. A blank or unrecognised DPT falls back to string, so an address
// with no DPT hint configured still round-trips through receiveInbound.
func dptKind(dpt string) types.ValueKind {
	main := dpt
	if idx := strings.Index(dpt, "."); idx >= 0 {
		main = dpt[:idx]
	}
	switch main {
	case "1":
		return types.ValueBool
	case "5", "6", "7", "8", "13":
		return types.ValueInt
	case "9", "14":
		return types.ValueReal
	default:
		return types.ValueString
	}
}
