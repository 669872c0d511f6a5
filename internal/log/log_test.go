package log

import (
	"testing"

	"go.uber.org/zap"
)

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop should return a non-nil logger unchanged")
	}
}
