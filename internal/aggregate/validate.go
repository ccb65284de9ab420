package aggregate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type histogramSpec struct {
	Name   string    `yaml:"name" validate:"required"`
	Column string    `yaml:"column" validate:"required"`
	Bins   int       `yaml:"bins" validate:"gt=0"`
	Min    float64   `yaml:"min"`
	Max    float64   `yaml:"max" validate:"gtfield=Min"`
	YRange []float64 `yaml:"y_range_user" validate:"omitempty,len=2"`
}

type profileSpec struct {
	Name    string `yaml:"name" validate:"required"`
	XColumn string `yaml:"x_column" validate:"required"`
	YColumn string `yaml:"y_column" validate:"required"`
}

type uniformAxis struct {
	XBins int     `yaml:"x_bins" validate:"gt=0"`
	XMin  float64 `yaml:"x_min"`
	XMax  float64 `yaml:"x_max" validate:"gtfield=XMin"`
}

type variableAxis struct {
	XBinEdges []float64 `yaml:"x_bin_edges" validate:"min=2,unique"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// check validates s and folds every field failure into one error.
func check(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = describe(fe)
	}
	return fmt.Errorf("invalid aggregation: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s values", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must have exactly %s values", field, fe.Param())
	case "unique":
		return fmt.Sprintf("%s contains duplicate edges", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
