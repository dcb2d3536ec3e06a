package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tanwiraasif/secure-automation-framework/executor"
)

// ArgumentValidatorConfig configures the argument validator.
type ArgumentValidatorConfig struct {
	// DeniedPatterns are regular expressions that reject an argument.
	DeniedPatterns []string

	// MaxArgs bounds the argument count.
	MaxArgs int

	// MaxArgLength bounds the length of a single argument.
	MaxArgLength int

	// AllowControlChars permits control characters other than tab.
	// Arguments never pass through a shell, so this is defense in depth
	// against output and log injection, not injection into a shell.
	AllowControlChars bool
}

// ArgumentValidator validates command arguments.
type ArgumentValidator struct {
	config        *ArgumentValidatorConfig
	deniedRegexps []*regexp.Regexp
}

// NewArgumentValidator creates an argument validator. A nil config applies
// conservative defaults.
func NewArgumentValidator(config *ArgumentValidatorConfig) *ArgumentValidator {
	if config == nil {
		config = &ArgumentValidatorConfig{
			MaxArgs:      100,
			MaxArgLength: 4096,
			DeniedPatterns: []string{
				`\$\(`, // command substitution, in case an argument reaches a shell downstream
				"`",    // backtick substitution
				`\n`,
				`\r`,
			},
		}
	}

	v := &ArgumentValidator{config: config}
	for _, pattern := range config.DeniedPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			v.deniedRegexps = append(v.deniedRegexps, re)
		}
	}
	return v
}

// Name returns the validator name.
func (v *ArgumentValidator) Name() string {
	return "argument_validator"
}

// Priority returns the execution priority.
func (v *ArgumentValidator) Priority() int {
	return 20
}

// Validate validates command arguments.
func (v *ArgumentValidator) Validate(ctx context.Context, cmd *executor.Command) error {
	if len(cmd.Args) > v.config.MaxArgs {
		return fmt.Errorf("%w: too many arguments (%d > %d)",
			executor.ErrArgumentNotAllowed, len(cmd.Args), v.config.MaxArgs)
	}

	for i, arg := range cmd.Args {
		if err := v.validateArgument(arg, i); err != nil {
			return err
		}
	}

	return nil
}

func (v *ArgumentValidator) validateArgument(arg string, position int) error {
	if len(arg) > v.config.MaxArgLength {
		return fmt.Errorf("%w: argument %d too long (%d > %d)",
			executor.ErrArgumentNotAllowed, position, len(arg), v.config.MaxArgLength)
	}

	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("%w: argument %d contains null byte",
			executor.ErrArgumentNotAllowed, position)
	}

	if !v.config.AllowControlChars {
		for _, r := range arg {
			if r < 32 && r != '\t' {
				return fmt.Errorf("%w: argument %d contains control character %#x",
					executor.ErrArgumentNotAllowed, position, r)
			}
		}
	}

	for _, re := range v.deniedRegexps {
		if re.MatchString(arg) {
			return fmt.Errorf("%w: argument %d matches denied pattern",
				executor.ErrArgumentNotAllowed, position)
		}
	}

	return nil
}

// SanitizeArgument removes null bytes and control characters (except tab)
// from a single argument.
func SanitizeArgument(arg string) string {
	var result strings.Builder
	for _, r := range arg {
		if (r >= 32 || r == '\t') && r != 0 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
