package value

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property 7 (spec §8): Value <-> typed-object round trip. unpack(pack(v))
// == v structurally for any value of a supported scalar shape, the known
// exception being integer-width normalization (exercised separately in
// TestAsCoercion) and map insertion-order preservation (exercised in
// TestMapInsertionOrderPreserved).
func TestProperty_ValueNativeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("I64 survives Native/FromNative round trip", prop.ForAll(
		func(n int64) bool {
			v := I64(n)
			return FromNative(v.Native()).Equal(v)
		},
		gen.Int64(),
	))

	properties.Property("String survives Native/FromNative round trip", prop.ForAll(
		func(s string) bool {
			v := String(s)
			return FromNative(v.Native()).Equal(v)
		},
		gen.AnyString(),
	))

	properties.Property("Bool survives Native/FromNative round trip", prop.ForAll(
		func(b bool) bool {
			v := Bool(b)
			return FromNative(v.Native()).Equal(v)
		},
		gen.Bool(),
	))

	properties.Property("Seq of I64 survives Native/FromNative round trip", prop.ForAll(
		func(ns []int64) bool {
			items := make([]Value, len(ns))
			for i, n := range ns {
				items[i] = I64(n)
			}
			v := Seq(items...)
			return FromNative(v.Native()).Equal(v)
		},
		gen.SliceOf(gen.Int64()),
	))

	properties.TestingRun(t)
}
