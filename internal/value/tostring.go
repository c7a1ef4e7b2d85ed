package value

import "strconv"

// ToString renders a Value for PRINT (spec §4.2). Struct/Closure render as
// opaque tags — the spec never prints them in its end-to-end scenarios
// (§8.4), so there is no contract to match beyond "something stable".
func ToString(v Value) string {
	switch {
	case IsNil(v):
		return "nil"
	case IsBool(v):
		if AsBool(v) {
			return "true"
		}
		return "false"
	case IsNumber(v):
		return strconv.FormatFloat(AsNumber(v), 'g', -1, 64)
	case IsPtr(v):
		switch Kind(v) {
		case ObjStruct:
			return "<struct>"
		case ObjClosure:
			return "<closure>"
		}
	}
	return "<unknown>"
}
