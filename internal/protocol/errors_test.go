package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{"", ErrBadRequest, ErrNoPoint, ErrBlocked, ErrMustMount} {
		if !IsKnownCode(code) {
			t.Errorf("IsKnownCode(%q) = false", code)
		}
	}
	if IsKnownCode("E_MADE_UP") {
		t.Error("unknown code reported as known")
	}
}
