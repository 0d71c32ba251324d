package operators

import (
	// Go Internal Packages
	"strings"
	"time"

	// Local Packages
	models "bbps-hub/models"
	utils "bbps-hub/utils"
)

// NormalizeOperators maps the field spellings used across the biller's
// operator payloads onto models.Operator. Entries without an id are dropped.
func NormalizeOperators(raw []map[string]any, syncedAt time.Time) []models.Operator {
	ops := make([]models.Operator, 0, len(raw))
	for _, r := range raw {
		id := utils.FirstString(r, "operator_id", "operatorId", "id")
		if id == "" {
			continue
		}
		ops = append(ops, models.Operator{
			OperatorID:   id,
			OperatorName: utils.FirstString(r, "operator_name", "operatorName", "name"),
			Category:     utils.FirstString(r, "operator_category_id", "category", "categoryId", "operator_category"),
			CategoryName: utils.FirstString(r, "operator_category_name", "categoryName"),
			Location:     utils.FirstString(r, "location", "locationId", "location_id"),
			LocationName: utils.FirstString(r, "locationName", "location_name"),
			Logo:         utils.FirstString(r, "logo", "operator_logo"),
			Description:  utils.FirstString(r, "description"),
			IsActive:     isActive(r),
			LastSyncedAt: syncedAt,
		})
	}
	return ops
}

// isActive treats status "1" as active and otherwise honours an explicit
// isActive=false. Anything else is active.
func isActive(r map[string]any) bool {
	if utils.ToString(r["status"]) == "1" {
		return true
	}
	if v, ok := r["isActive"]; ok {
		if b, ok := utils.ToBool(v); ok && !b {
			return false
		}
	}
	return true
}

// NormalizeParameters maps raw parameter descriptors onto the stored schema.
func NormalizeParameters(raw []map[string]any) []models.OperatorParameter {
	params := make([]models.OperatorParameter, 0, len(raw))
	for _, r := range raw {
		name := utils.FirstString(r, "name", "param_name", "paramName")
		if name == "" {
			continue
		}
		p := models.OperatorParameter{
			Name:     name,
			Label:    utils.FirstString(r, "label", "param_label", "paramLabel"),
			Type:     paramType(utils.FirstString(r, "type", "param_type", "paramType")),
			Required: required(r),
			Options:  options(r),
		}

		v := models.ParameterValidation{Pattern: utils.FirstString(r, "pattern", "regex")}
		if nested, ok := r["validation"].(map[string]any); ok {
			if v.Pattern == "" {
				v.Pattern = utils.FirstString(nested, "pattern", "regex")
			}
			v.MinLength = intOf(nested, "minLength", "min_length")
			v.MaxLength = intOf(nested, "maxLength", "max_length")
		}
		if v.MinLength == 0 {
			v.MinLength = intOf(r, "minLength", "min_length")
		}
		if v.MaxLength == 0 {
			v.MaxLength = intOf(r, "maxLength", "max_length")
		}
		if v != (models.ParameterValidation{}) {
			p.Validation = &v
		}
		params = append(params, p)
	}
	return params
}

func paramType(t string) string {
	switch strings.ToUpper(t) {
	case "NUMBER", "NUMERIC", "INT", "INTEGER", "DECIMAL":
		return models.ParamNumber
	case "DATE":
		return models.ParamDate
	case "DROPDOWN", "LIST", "SELECT":
		return models.ParamDropdown
	case "":
		return ""
	}
	return models.ParamText
}

func required(r map[string]any) bool {
	if v, ok := utils.FirstValue(r, "required", "is_required", "isRequired"); ok {
		b, _ := utils.ToBool(v)
		return b
	}
	if v, ok := utils.FirstValue(r, "is_optional", "isOptional"); ok {
		b, ok := utils.ToBool(v)
		return ok && !b
	}
	return false
}

func options(r map[string]any) []string {
	v, ok := utils.FirstValue(r, "options", "values")
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			item = utils.FirstString(m, "value", "id", "name", "label")
		}
		if s := utils.ToString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intOf(m map[string]any, keys ...string) int {
	v, ok := utils.FirstValue(m, keys...)
	if !ok {
		return 0
	}
	f, _ := utils.ToFloat(v)
	return int(f)
}
