package publisher

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oshokin/release-publisher/internal/domain/release"
)

// diffContext is the number of unchanged lines shown around each change.
const diffContext = 3

// Diff renders a unified diff between two manifests in their serialized
// form. It is empty when both serialize identically.
func Diff(before, after release.Manifest) (string, error) {
	from, err := before.Marshal()
	if err != nil {
		return "", err
	}

	to, err := after.Marshal()
	if err != nil {
		return "", err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: "live",
		ToFile:   "proposed",
		Context:  diffContext,
	})
	if err != nil {
		return "", fmt.Errorf("diff manifests: %w", err)
	}

	return diff, nil
}
