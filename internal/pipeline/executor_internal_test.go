package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"mediacompress/internal/fileutil"
	"mediacompress/internal/outcome"
)

func TestMoveFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rename failed", errors.New("rename: permission denied"), outcome.ReasonMove},
		{"source retained", fmt.Errorf("%w: permission denied", fileutil.ErrSourceRetained), outcome.ReasonRemoveOriginal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := moveFailure(tt.err)
			if got.Status != outcome.StatusFailed || got.Reason != tt.want {
				t.Fatalf("moveFailure(%v) = %s, want Failed [%s]", tt.err, got, tt.want)
			}
		})
	}
}
