package value

// Native converts a Value into plain Go data (bool, int64, uint64, float64,
// string, []byte, time.Time, []any, map[string]any, or nil for Unit/None)
// suitable for handing to github.com/mitchellh/mapstructure.
func (v Value) Native() any {
	switch v.kind {
	case KindUnit:
		return nil
	case KindBool:
		return v.b
	case KindI8, KindI16, KindI32, KindI64:
		return v.i
	case KindU8, KindU16, KindU32, KindU64:
		return v.u
	case KindF32, KindF64:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		cp := make([]byte, len(v.bs))
		copy(cp, v.bs)
		return cp
	case KindTimestamp:
		return v.t
	case KindSeq:
		out := make([]any, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, v.m.Len())
		v.m.Range(func(k string, val Value) bool {
			out[k] = val.Native()
			return true
		})
		return out
	case KindOptional:
		if !v.optSet {
			return nil
		}
		return v.optInner.Native()
	default:
		return nil
	}
}

// FromNative builds a Value tree from plain Go data of the shapes produced
// by Native, plus the common integer/float widths and string/[]byte maps
// that decoders typically hand back.
func FromNative(x any) Value {
	switch t := x.(type) {
	case nil:
		return None()
	case bool:
		return Bool(t)
	case int:
		return I64(int64(t))
	case int8:
		return I8(t)
	case int16:
		return I16(t)
	case int32:
		return I32(t)
	case int64:
		return I64(t)
	case uint:
		return U64(uint64(t))
	case uint8:
		return U8(t)
	case uint16:
		return U16(t)
	case uint32:
		return U32(t)
	case uint64:
		return U64(t)
	case float32:
		return F32(t)
	case float64:
		return F64(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromNative(item)
		}
		return Seq(items...)
	case map[string]any:
		m := NewMap()
		for k, val := range t {
			m.Set(k, FromNative(val))
		}
		return MapValue(m)
	default:
		return None()
	}
}
