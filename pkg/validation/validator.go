package validation

import (
	"html"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	yyyymmRegex   = regexp.MustCompile(`^\d{4}(0[1-9]|1[0-2])$`)
	productCodeRe = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,50}$`)
)

// Sanitizer cleans user supplied text before it is stored
type Sanitizer struct {
	strict *bluemonday.Policy
	ugc    *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with a strict policy for plain text
// fields and a user generated content policy for rich text.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		ugc:    bluemonday.UGCPolicy(),
	}
}

// Text strips every tag and returns plain text. Entities the policy
// produces are decoded again so "Q&A" is stored as typed.
func (s *Sanitizer) Text(input string) string {
	if input == "" {
		return input
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(input)))
}

// HTML keeps safe formatting markup and drops scripts, handlers and the like
func (s *Sanitizer) HTML(input string) string {
	if input == "" {
		return input
	}
	return strings.TrimSpace(s.ugc.Sanitize(input))
}

// RegisterCustomValidators adds the project's validation tags to v
func RegisterCustomValidators(v *validator.Validate) error {
	// disclosure month as published by the finlife API
	if err := v.RegisterValidation("yyyymm", func(fl validator.FieldLevel) bool {
		return yyyymmRegex.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}

	if err := v.RegisterValidation("product_code", func(fl validator.FieldLevel) bool {
		return productCodeRe.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}

	return v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}
