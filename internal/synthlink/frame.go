package synthlink

import (
	"fmt"

	"github.com/harmonia-data/patchsweep/internal/params"
)

const (
	setOpcode = 's'

	// extendedMarker in the first parameter byte selects the two-byte
	// parameter form.
	extendedMarker = 0xFF
)

// resetFrame returns the synthesizer to its power-on patch.
var resetFrame = []byte("r 0")

// EncodeSetFrame builds the set-parameter frame for one assignment.
// Parameters 0-254 use the short form 's' [param] [value]; 255-510 use the
// extended form 's' [0xFF] [param-255] [value].
func EncodeSetFrame(param, value int) ([]byte, error) {
	if value < 0 || value > params.MaxParamValue {
		return nil, fmt.Errorf("value %d outside 0-%d", value, params.MaxParamValue)
	}
	switch {
	case param < 0:
		return nil, fmt.Errorf("parameter %d is negative", param)
	case param < extendedMarker:
		return []byte{setOpcode, byte(param), byte(value)}, nil
	case param <= params.MaxParamIndex:
		return []byte{setOpcode, extendedMarker, byte(param - extendedMarker), byte(value)}, nil
	default:
		return nil, fmt.Errorf("parameter %d outside 0-%d", param, params.MaxParamIndex)
	}
}
