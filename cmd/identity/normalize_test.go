package identity

import (
	"testing"

	"shelf/cmd/internal/apperr"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Alice", want: "alice"},
		{in: "  bob.smith ", want: "bob.smith"},
		{in: "x_y-z", want: "x_y-z"},
		{in: "ab", wantErr: true},
		{in: "has space", wantErr: true},
		{in: "semi;colon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ValidateUsername(tt.in)
		if tt.wantErr {
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("%q: expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %q want %q", tt.in, got, tt.want)
		}
	}
}
