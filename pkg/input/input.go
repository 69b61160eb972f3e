// Package input turns raw console lines into validated values: postcodes,
// search radii, yes/no answers and numbered choices. Invalid input is
// explained in one line and the user is asked again.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"busstop/pkg/config"
	"busstop/pkg/console"
)

var (
	// ErrInvalidInput is wrapped with the reason a line was rejected.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAttemptsExhausted is returned once a RetryPolicy runs out.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
)

// RetryPolicy bounds how many times a loop may ask again. MaxAttempts of
// zero means ask forever.
type RetryPolicy struct {
	MaxAttempts int
}

// Unbounded keeps prompting until the user gets it right.
var Unbounded = RetryPolicy{}

// Allow reports whether attempt (1-based) may run.
func (p RetryPolicy) Allow(attempt int) bool {
	return p.MaxAttempts <= 0 || attempt <= p.MaxAttempts
}

// Validator prompts through a console.Prompter and reports rejected input to out.
type Validator struct {
	prompter  console.Prompter
	out       io.Writer
	minRadius int
	maxRadius int
	retry     RetryPolicy
}

func New(prompter console.Prompter, out io.Writer, search config.SearchConfig, retry RetryPolicy) *Validator {
	return &Validator{
		prompter:  prompter,
		out:       out,
		minRadius: search.MinRadius,
		maxRadius: search.MaxRadius,
		retry:     retry,
	}
}

// Retry returns the policy the validator loops with.
func (v *Validator) Retry() RetryPolicy {
	return v.retry
}

// ReadPostcode asks for a postcode and normalizes it.
func (v *Validator) ReadPostcode(ctx context.Context) (string, error) {
	return read(ctx, v, "Enter a postcode: ", ParsePostcode)
}

// ReadRadius asks for a search radius within the configured bounds.
func (v *Validator) ReadRadius(ctx context.Context) (int, error) {
	prompt := fmt.Sprintf("Enter a search radius in meters (%d-%d): ", v.minRadius, v.maxRadius)
	return read(ctx, v, prompt, func(raw string) (int, error) {
		return ParseRadius(raw, v.minRadius, v.maxRadius)
	})
}

// ReadYesNo asks prompt until the answer is y or n.
func (v *Validator) ReadYesNo(ctx context.Context, prompt string) (bool, error) {
	return read(ctx, v, prompt, ParseYesNo)
}

// ReadChoice asks for a 1-based option in [1, n]. A single option is
// chosen without asking.
func (v *Validator) ReadChoice(ctx context.Context, prompt string, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: no options to choose from", ErrInvalidInput)
	}
	if n == 1 {
		return 1, nil
	}
	return read(ctx, v, prompt, func(raw string) (int, error) {
		return ParseChoice(raw, n)
	})
}

func read[T any](ctx context.Context, v *Validator, prompt string, parse func(string) (T, error)) (T, error) {
	var zero T
	for attempt := 1; v.retry.Allow(attempt); attempt++ {
		raw, err := v.prompter.Prompt(ctx, prompt)
		if err != nil {
			return zero, fmt.Errorf("read input: %w", err)
		}

		value, err := parse(raw)
		if err == nil {
			return value, nil
		}
		_, _ = fmt.Fprintln(v.out, err)
	}
	return zero, ErrAttemptsExhausted
}

// ParsePostcode removes all whitespace and upper-cases raw.
func ParsePostcode(raw string) (string, error) {
	postcode := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
	if postcode == "" {
		return "", fmt.Errorf("%w: postcode is empty", ErrInvalidInput)
	}
	return postcode, nil
}

// ParseRadius parses a base-10 radius in meters within [minRadius, maxRadius].
func ParseRadius(raw string, minRadius, maxRadius int) (int, error) {
	radius, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: radius %q is not a number", ErrInvalidInput, strings.TrimSpace(raw))
	}
	if radius < minRadius {
		return 0, fmt.Errorf("%w: radius must be at least %d meters", ErrInvalidInput, minRadius)
	}
	if radius > maxRadius {
		return 0, fmt.Errorf("%w: radius must be at most %d meters", ErrInvalidInput, maxRadius)
	}
	return radius, nil
}

// ParseYesNo accepts y or n in any case.
func ParseYesNo(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "y":
		return true, nil
	case "n":
		return false, nil
	default:
		return false, fmt.Errorf("%w: please answer y or n", ErrInvalidInput)
	}
}

// ParseChoice parses a 1-based option number in [1, n].
func ParseChoice(raw string, n int) (int, error) {
	choice, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || choice < 1 || choice > n {
		return 0, fmt.Errorf("%w: choose a number from 1 to %d", ErrInvalidInput, n)
	}
	return choice, nil
}
