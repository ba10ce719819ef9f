// Package schema is the single source of truth for which collections the
// admin proxy may touch and what a record in each may contain.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"portfolio.admin/internal/models"
)

var ErrValidation = errors.New("validation failed")

// Kind is the JSON type a field must decode to.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindStringList
	KindObject
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindStringList:
		return "array of strings"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// Field describes one payload key. Rule is a validator tag applied to
// non-null values.
type Field struct {
	Kind     Kind
	Required bool
	Rule     string
}

// Collection describes an allow-listed table.
type Collection struct {
	Name   string
	Public bool
	Fields map[string]Field
}

var validate = validator.New()

// Validate checks data against the collection. With partial set (updates),
// missing required fields are tolerated but present ones must still be valid.
// Unknown fields are rejected.
func (c *Collection) Validate(data map[string]any, partial bool) error {
	var problems []string

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if slices.Contains(models.ReservedFields, k) {
			continue
		}
		if _, ok := c.Fields[k]; !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown field", k))
		}
	}

	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := c.Fields[name]
		v, present := data[name]
		if !present || v == nil {
			if f.Required && (!partial || present) {
				problems = append(problems, fmt.Sprintf("%s: required", name))
			}
			continue
		}
		if !kindMatches(f.Kind, v) {
			problems = append(problems, fmt.Sprintf("%s: must be %s", name, f.Kind))
			continue
		}
		if f.Rule == "" {
			continue
		}
		if err := validate.Var(v, f.Rule); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", name, describe(err)))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func kindMatches(k Kind, v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindStringList:
		switch list := v.(type) {
		case []string:
			return true
		case []any:
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	case KindObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
	return err.Error()
}

// Lookup returns the allow-listed collection called name.
func Lookup(name string) (*Collection, bool) {
	c, ok := registry[name]
	return c, ok
}

// Names returns every allow-listed collection, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Allowed reports whether name is on the allow-list.
func Allowed(name string) bool {
	_, ok := registry[name]
	return ok
}
