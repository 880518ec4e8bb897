package analyze

import "github.com/albenik/bcd"

// Hypothesis is one named guess at how a raw byte encodes a physical
// value. Convert turns the byte into the physical value; results
// outside [Min,Max] are implausible and silently dropped. Adding an
// encoding means adding a table entry, call sites stay untouched.
type Hypothesis struct {
	Name     string
	Convert  func(byte) (float64, bool)
	Min, Max float64
}

// Value is one plausible decoding of a byte.
type Value struct {
	Name  string
	Value float64
}

// Hypotheses returns the default encoding table:
//
//	offset40   v - 40        common automotive "0 = -40 °C"
//	signed128  v - 128       signed byte, 0x80 = 0 °C
//	direct     v             byte is the Celsius value
//	half       v/2 - 40      half-degree precision
//	bcd        BCD °F → °C   BCD-coded Fahrenheit setpoint
func Hypotheses() []Hypothesis {
	return []Hypothesis{
		{
			Name:    "offset40",
			Convert: func(v byte) (float64, bool) { return float64(v) - 40, true },
			Min:     -20, Max: 50,
		},
		{
			Name:    "signed128",
			Convert: func(v byte) (float64, bool) { return float64(v) - 128, true },
			Min:     -20, Max: 50,
		},
		{
			Name:    "direct",
			Convert: func(v byte) (float64, bool) { return float64(v), true },
			Min:     0, Max: 40,
		},
		{
			Name:    "half",
			Convert: func(v byte) (float64, bool) { return float64(v)*0.5 - 40, true },
			Min:     -20, Max: 50,
		},
		{
			Name: "bcd",
			Convert: func(v byte) (float64, bool) {
				if v&0x0F > 9 || v>>4 > 9 {
					return 0, false // not valid BCD
				}
				f := float64(bcd.ToUint16([]byte{0, v}))
				return (f - 32) * 5 / 9, true
			},
			Min: 10, Max: 35,
		},
	}
}

// DecodeAll evaluates every hypothesis against the raw byte and returns
// the plausible results in table order. Implausible results are not an
// error, they are simply absent.
func DecodeAll(raw byte, hypotheses []Hypothesis) []Value {
	var out []Value
	for _, h := range hypotheses {
		v, ok := h.Convert(raw)
		if !ok || v < h.Min || v > h.Max {
			continue
		}
		out = append(out, Value{Name: h.Name, Value: v})
	}
	return out
}
