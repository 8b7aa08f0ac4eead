package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mwinyimoha/darasa/core"
)

// Block value bounds
const (
	maxTextLen    = 100000
	maxCodeLen    = 50000
	maxImageURL   = 2048
	maxImageField = 500
	maxHeaders    = 20
	maxRows       = 1000
	maxCellLen    = 1000
)

var (
	subjectStatusTag  = "subjectstatus"
	subjectStatusText = "invalid status"

	blockTypeTag  = "blocktype"
	blockTypeText = "invalid block type"

	errInvalidBlockValue = errors.New("invalid block value")
)

// InitValidators registers this package's custom validators and their
// translations. Must be called after core.InitValidators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(subjectStatusTag, subjectStatusValidation)
	core.RegisterCustomTranslation(validate, translator, subjectStatusTag, subjectStatusText)

	_ = validate.RegisterValidation(blockTypeTag, blockTypeValidation)
	core.RegisterCustomTranslation(validate, translator, blockTypeTag, blockTypeText)
}

// Custom Validators

func subjectStatusValidation(fl validator.FieldLevel) bool {
	return isOneOf(fl.Field().String(), AllStatuses)
}

func blockTypeValidation(fl validator.FieldLevel) bool {
	return isOneOf(fl.Field().String(), AllBlockTypes)
}

func isOneOf(val string, all []string) bool {
	for _, v := range all {
		if val == v {
			return true
		}
	}
	return false
}

func blockValueError(msg string) error {
	return core.NewValidationError(errInvalidBlockValue, core.FieldError{Field: "value", Error: msg})
}

// validateBlockValue checks a block value payload against its type's shape
// and bounds.
func validateBlockValue(btype string, value interface{}) error {
	switch btype {
	case BlockText:
		return validateStringValue(value, maxTextLen)
	case BlockCode:
		return validateStringValue(value, maxCodeLen)
	case BlockImage:
		return validateImageValue(value)
	case BlockTable:
		return validateTableValue(value)
	}
	return blockValueError("unknown block type")
}

func validateStringValue(value interface{}, maxLen int) error {
	s, ok := value.(string)
	if !ok {
		return blockValueError("value must be a string")
	}
	if len(s) > maxLen {
		return blockValueError(fmt.Sprintf("value must not exceed %d bytes", maxLen))
	}
	return nil
}

func validateImageValue(value interface{}) error {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return blockValueError("value must be an object with url, caption and alt")
	}

	url, ok := obj["url"].(string)
	if !ok || url == "" {
		return blockValueError("url is required")
	}
	if !strings.HasPrefix(url, "https://") {
		return blockValueError("url must use https")
	}
	if len(url) > maxImageURL {
		return blockValueError(fmt.Sprintf("url must not exceed %d bytes", maxImageURL))
	}

	for _, field := range []string{"caption", "alt"} {
		raw, exists := obj[field]
		if !exists || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return blockValueError(field + " must be a string")
		}
		if len(s) > maxImageField {
			return blockValueError(fmt.Sprintf("%s must not exceed %d bytes", field, maxImageField))
		}
	}
	return nil
}

func validateTableValue(value interface{}) error {
	obj, ok := value.(map[string]interface{})
	if !ok {
		return blockValueError("value must be an object with headers and rows")
	}

	rawHeaders, ok := obj["headers"].([]interface{})
	if !ok {
		return blockValueError("headers must be an array of strings")
	}
	if len(rawHeaders) > maxHeaders {
		return blockValueError(fmt.Sprintf("headers must not exceed %d entries", maxHeaders))
	}
	for _, h := range rawHeaders {
		s, ok := h.(string)
		if !ok {
			return blockValueError("headers must be an array of strings")
		}
		if len(s) > maxCellLen {
			return blockValueError(fmt.Sprintf("header cells must not exceed %d bytes", maxCellLen))
		}
	}

	rawRows, ok := obj["rows"].([]interface{})
	if !ok {
		return blockValueError("rows must be an array of arrays")
	}
	if len(rawRows) > maxRows {
		return blockValueError(fmt.Sprintf("rows must not exceed %d entries", maxRows))
	}
	for _, r := range rawRows {
		row, ok := r.([]interface{})
		if !ok {
			return blockValueError("rows must be an array of arrays")
		}
		if len(row) != len(rawHeaders) {
			return blockValueError("every row must be as long as headers")
		}
		for _, c := range row {
			s, ok := c.(string)
			if !ok {
				return blockValueError("row cells must be strings")
			}
			if len(s) > maxCellLen {
				return blockValueError(fmt.Sprintf("row cells must not exceed %d bytes", maxCellLen))
			}
		}
	}
	return nil
}

// ConvertBlockValue coerces an existing value to fit a new block type:
// text/code stringify the value, image/table reset to an empty shell.
func ConvertBlockValue(btype string, value interface{}) interface{} {
	switch btype {
	case BlockText, BlockCode:
		if s, ok := value.(string); ok {
			return s
		}
		if value == nil {
			return ""
		}
		b, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(b)
	case BlockImage:
		return map[string]interface{}{"url": "", "caption": "", "alt": ""}
	case BlockTable:
		return map[string]interface{}{"headers": []interface{}{}, "rows": []interface{}{}}
	}
	return value
}
