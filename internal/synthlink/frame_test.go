package synthlink

import (
	"bytes"
	"testing"
)

func TestEncodeSetFrame(t *testing.T) {
	tests := []struct {
		name    string
		param   int
		value   int
		want    []byte
		wantErr bool
	}{
		{"short form low", 0, 0, []byte{'s', 0, 0}, false},
		{"short form high", 254, 255, []byte{'s', 254, 255}, false},
		{"extended form low", 255, 10, []byte{'s', 0xFF, 0, 10}, false},
		{"extended form mid", 300, 64, []byte{'s', 0xFF, 45, 64}, false},
		{"extended form high", 510, 1, []byte{'s', 0xFF, 255, 1}, false},
		{"param too large", 511, 0, nil, true},
		{"negative param", -1, 0, nil, true},
		{"value too large", 3, 256, nil, true},
		{"negative value", 3, -1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeSetFrame(tt.param, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got frame % X", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeSetFrame(%d, %d) returned error: %v", tt.param, tt.value, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeSetFrame(%d, %d) = % X, want % X", tt.param, tt.value, got, tt.want)
			}
		})
	}
}
