package security

import (
	"errors"
	"strings"
	"testing"
)

func nested(n int) string {
	return strings.Repeat(`{"a":`, n) + "1" + strings.Repeat("}", n)
}

func TestCheckJSONBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		limits BodyLimits
		want   error
	}{
		{name: "empty", body: "", want: nil},
		{name: "whitespace", body: " \n", want: nil},
		{name: "flat", body: `{"message":"hi"}`, limits: BodyLimits{MaxDepth: 1}, want: nil},
		{name: "at depth limit", body: nested(4), limits: BodyLimits{MaxDepth: 4}, want: nil},
		{name: "over depth limit", body: nested(5), limits: BodyLimits{MaxDepth: 4}, want: ErrJSONTooDeep},
		{name: "arrays count", body: `[[[]]]`, limits: BodyLimits{MaxDepth: 2}, want: ErrJSONTooDeep},
		{name: "brackets in strings ignored", body: `{"m":"[[[[{{{{"}`, limits: BodyLimits{MaxDepth: 1}, want: nil},
		{name: "default depth", body: nested(DefaultMaxJSONDepth + 1), want: ErrJSONTooDeep},
		{name: "too large", body: `{"m":"` + strings.Repeat("x", 64) + `"}`, limits: BodyLimits{MaxBytes: 32}, want: ErrBodyTooLarge},
		{name: "truncated", body: `{"message":"hi"`, want: ErrInvalidJSON},
		{name: "garbage", body: `{"message" 1}`, want: ErrInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckJSONBody([]byte(tt.body), tt.limits)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheckJSONBody_StopsEarly(t *testing.T) {
	t.Parallel()

	// Unterminated but already too deep: depth wins over the syntax error.
	body := strings.Repeat("[", 100)
	if err := CheckJSONBody([]byte(body), BodyLimits{MaxDepth: 10}); !errors.Is(err, ErrJSONTooDeep) {
		t.Fatalf("err = %v, want ErrJSONTooDeep", err)
	}
}
