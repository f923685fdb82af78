package light

// ID identifies one physical or logical light within a light set
type ID string

// RGB is a colour with channels in [0,1]
type RGB struct {
	R, G, B float64
}

// Black is the colour of a light with no contribution
var Black = RGB{}

// Scale multiplies every channel by k
func (c RGB) Scale(k float64) RGB {
	return RGB{c.R * k, c.G * k, c.B * k}
}

// Add sums two colours channel-wise without clamping
func (c RGB) Add(o RGB) RGB {
	return RGB{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Max returns the per-channel maximum of two colours
func (c RGB) Max(o RGB) RGB {
	return RGB{max(c.R, o.R), max(c.G, o.G), max(c.B, o.B)}
}

// Clamp limits every channel to [0,1]
func (c RGB) Clamp() RGB {
	return RGB{Clamp01(c.R), Clamp01(c.G), Clamp01(c.B)}
}

// Normalize rescales the colour so its brightest channel is 1.
// Black stays black.
func (c RGB) Normalize() RGB {
	c = RGB{max(c.R, 0), max(c.G, 0), max(c.B, 0)}
	m := max(c.R, c.G, c.B)
	if m == 0 {
		return Black
	}
	return c.Scale(1 / m)
}

// Bytes converts to 8-bit channels (for drivers)
func (c RGB) Bytes() [3]uint8 {
	c = c.Clamp()
	return [3]uint8{
		uint8(c.R*255 + 0.5),
		uint8(c.G*255 + 0.5),
		uint8(c.B*255 + 0.5),
	}
}

// Sample is one instrument's contribution to one light for one tick
type Sample struct {
	Light ID
	Color RGB     // colour of the triggering note
	Level float64 // envelope output 0-1
}

// Value returns the colour weighted by the envelope level
func (s Sample) Value() RGB {
	return s.Color.Scale(s.Level)
}

// Frame maps every light of a show to its final colour for one tick.
// Frames are rebuilt each tick; never mutate one after handing it out.
type Frame map[ID]RGB

// Clamp01 limits v to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 || v != v { // NaN counts as dark
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
