package operators

import (
	// Go Internal Packages
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	// Local Packages
	errors "bbps-hub/errors"
	models "bbps-hub/models"
	utils "bbps-hub/utils"
)

// ValidateParameters checks caller parameters against the stored schema of
// op. Operators without a schema accept any parameters.
func ValidateParameters(op *models.Operator, params map[string]any) error {
	if op == nil || len(op.Parameters) == 0 {
		return nil
	}

	ve := errors.ValidationErrs()
	for _, p := range op.Parameters {
		raw, present := params[p.Name]
		value := utils.ToString(raw)
		if !present || raw == nil || value == "" {
			if p.Required {
				ve.Add(p.Name, "is required")
			}
			continue
		}

		switch p.Type {
		case models.ParamNumber:
			if _, ok := utils.ToFloat(raw); !ok {
				ve.Add(p.Name, "must be a number")
			}
		case models.ParamDate:
			if utils.ParseTime(raw) == nil {
				ve.Add(p.Name, "must be a date")
			}
		case models.ParamDropdown:
			if len(p.Options) > 0 && !slices.Contains(p.Options, value) {
				ve.Add(p.Name, "must be one of "+strings.Join(p.Options, ", "))
			}
		}

		if p.Validation == nil {
			continue
		}
		length := utf8.RuneCountInString(value)
		if p.Validation.MinLength > 0 && length < p.Validation.MinLength {
			ve.Add(p.Name, fmt.Sprintf("must be at least %d characters", p.Validation.MinLength))
		}
		if p.Validation.MaxLength > 0 && length > p.Validation.MaxLength {
			ve.Add(p.Name, fmt.Sprintf("must be at most %d characters", p.Validation.MaxLength))
		}
		if p.Validation.Pattern != "" {
			// An unparseable upstream pattern is not the caller's fault.
			if re, err := regexp.Compile(p.Validation.Pattern); err == nil && !re.MatchString(value) {
				ve.Add(p.Name, "has an invalid format")
			}
		}
	}

	if err := ve.Err(); err != nil {
		return errors.ValidationFailedErr(err)
	}
	return nil
}
