package engine

import (
	"fmt"

	"go-lightsynth/light"
)

// Blend selects how overlapping instruments combine on one light
type Blend string

const (
	Additive   Blend = "additive" // clamp(sum(rgb*level))
	Max        Blend = "max"      // per-channel max(rgb*level)
	LastWriter Blend = "last"     // last lit instrument in configured order wins
)

// ParseBlend accepts the show file spelling; empty means Additive
func ParseBlend(s string) (Blend, error) {
	switch Blend(s) {
	case "", Additive:
		return Additive, nil
	case Max:
		return Max, nil
	case LastWriter:
		return LastWriter, nil
	}
	return "", fmt.Errorf("unknown blend mode %q", s)
}

// Compose reduces per-instrument samples (outer slice in instrument order)
// into one frame. Every light in lights is present; lights nobody lit are
// black. Pure: no state survives the call.
func Compose(lights []light.ID, samples [][]light.Sample, blend Blend) light.Frame {
	frame := make(light.Frame, len(lights))
	for _, l := range lights {
		frame[l] = light.Black
	}
	for _, inst := range samples {
		for _, s := range inst {
			v := s.Value()
			cur := frame[s.Light]
			switch blend {
			case Max:
				frame[s.Light] = cur.Max(v)
			case LastWriter:
				if s.Level > 0 {
					frame[s.Light] = v
				}
			default:
				frame[s.Light] = cur.Add(v)
			}
		}
	}
	for l, c := range frame {
		frame[l] = c.Clamp()
	}
	return frame
}
