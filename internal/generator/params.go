package generator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidParams is returned when scenario parameters fail validation.
var ErrInvalidParams = errors.New("invalid generator parameters")

// ScenarioType selects the motion policy of a scenario run.
type ScenarioType string

const (
	ScenarioHold           ScenarioType = "hold"
	ScenarioFalseBreakdown ScenarioType = "false_breakdown"
	ScenarioBreakout       ScenarioType = "breakout"
	ScenarioMeanRevert     ScenarioType = "mean_revert"
)

// ScenarioTypes lists the supported scenarios.
var ScenarioTypes = []ScenarioType{ScenarioHold, ScenarioFalseBreakdown, ScenarioBreakout, ScenarioMeanRevert}

// GeneratorParams drive the free-walk generator.
type GeneratorParams struct {
	Steps     int     `json:"steps" validate:"gt=0"`
	StartSpot float64 `json:"startSpot"`
	StartIV   float64 `json:"startIv" validate:"gte=0"`
	TargetIV  float64 `json:"targetIv" validate:"gte=0"`
	ATR       float64 `json:"atr" validate:"gt=0"`
	Flip      float64 `json:"flip"`
	PutWall   float64 `json:"putWall"`
	CallWall  float64 `json:"callWall" validate:"gtfield=PutWall"`
}

// Validate applies caller-side sanity checks. FreeWalk itself does not call it.
func (p GeneratorParams) Validate() error {
	return validateStruct(p)
}

// ScenarioParams drive the scenario generator. IV and HV are percentages.
type ScenarioParams struct {
	Spot            float64      `json:"spot"`
	Flip            float64      `json:"flip"`
	PutWall         float64      `json:"putWall"`
	CallWall        float64      `json:"callWall" validate:"gtfield=PutWall"`
	IV              float64      `json:"iv" validate:"gte=0"`
	HV              float64      `json:"hv" validate:"gt=0"`
	ATR             float64      `json:"atr" validate:"gt=0"`
	FrameCount      int          `json:"frameCount" validate:"gt=0"`
	DurationMinutes float64      `json:"durationMinutes" validate:"gte=0"`
	ScenarioType    ScenarioType `json:"scenarioType" validate:"oneof=hold false_breakdown breakout mean_revert"`
}

// Validate reports every violated precondition at once.
func (p ScenarioParams) Validate() error {
	return validateStruct(p)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, describe(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got %v)", e.Field(), e.Param(), e.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s (got %v)", e.Field(), e.Param(), e.Value())
	case "gtfield":
		return fmt.Sprintf("%s must be greater than %s (got %v)", e.Field(), lowerFirst(e.Param()), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %q)", e.Field(), e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field(), e.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
