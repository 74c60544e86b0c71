//go:build property

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestErrorMatchingProperties validates code-based matching across wrapping depths
func TestErrorMatchingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	sentinels := []*Error{
		ErrParseFailed, ErrControlChar, ErrProtocolRelative, ErrReentrancy,
		ErrCollectorTimeout, ErrMalformedStream, ErrBaselineMissing,
		ErrBaselineUnsigned, ErrUnregisteredRenderer, ErrBranchProtectionMissing,
	}

	properties.Property("wrapping never hides the sentinel", prop.ForAll(
		func(idx int, depth int, msg string) bool {
			target := sentinels[idx]
			var err error = &Error{Type: target.Type, Code: target.Code, Message: msg}
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}
			return errors.Is(err, target)
		},
		gen.IntRange(0, len(sentinels)-1),
		gen.IntRange(0, 8),
		gen.AlphaString(),
	))

	properties.Property("exit code is fixed by kind", prop.ForAll(
		func(idx int, depth int) bool {
			target := sentinels[idx]
			var err error = NewAuditError(target.Code, "x", target.ExitCode)
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}
			want := target.ExitCode
			if want == 0 {
				want = ExitInternal
			}
			return ExitCode(err) == want
		},
		gen.IntRange(0, len(sentinels)-1),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
