package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// InitType describes the available weight initialization schemes
type InitType string

const (
	GlorotU  InitType = "GlorotU"
	GlorotN  InitType = "GlorotN"
	Zeroes   InitType = "Zeroes"
	Gaussian InitType = "Gaussian"
)

// InitConfig describes a weight initialization scheme. Mean and
// Stddev apply to the Gaussian scheme only; Gain applies to the
// Glorot schemes and defaults to 1 when 0.
type InitConfig struct {
	Type   InitType
	Gain   float64
	Mean   float64
	Stddev float64
}

// Validate returns an error describing why the configuration is
// invalid, or nil if it is valid.
func (c InitConfig) Validate() error {
	switch c.Type {
	case GlorotU, GlorotN, Zeroes:
	case Gaussian:
		if c.Stddev <= 0 {
			return fmt.Errorf("validate: gaussian init needs positive "+
				"stddev \n\thave(%v)", c.Stddev)
		}
	default:
		return fmt.Errorf("validate: unknown init type %v", c.Type)
	}
	return nil
}

// Create returns the Gorgonia InitWFn the configuration describes.
func (c InitConfig) Create() (G.InitWFn, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("create: %v", err)
	}

	gain := c.Gain
	if gain == 0 {
		gain = 1.0
	}

	switch c.Type {
	case GlorotU:
		return G.GlorotU(gain), nil
	case GlorotN:
		return G.GlorotN(gain), nil
	case Zeroes:
		return G.Zeroes(), nil
	case Gaussian:
		return G.Gaussian(c.Mean, c.Stddev), nil
	}

	// Unreachable: Validate enumerates all types
	return nil, fmt.Errorf("create: unknown init type %v", c.Type)
}
