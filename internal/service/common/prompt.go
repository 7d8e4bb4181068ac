//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// SurveyConfirmer prompts on the terminal. The default answer is no.
type SurveyConfirmer struct {
	// Options are passed to every prompt, e.g. survey.WithStdio in tests.
	Options []survey.AskOpt
}

// Confirm implements Confirmer.
func (c SurveyConfirmer) Confirm(ctx context.Context, message string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var confirmed bool

	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}

	if err := survey.AskOne(prompt, &confirmed, c.Options...); err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}

	return confirmed, nil
}

// StaticConfirmer answers every question the same way, for --yes and tests.
type StaticConfirmer bool

// Confirm implements Confirmer.
func (c StaticConfirmer) Confirm(ctx context.Context, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	return bool(c), nil
}
