// Package soil defines the soil/climate reading that every crop score is computed
// from, along with the partial "ideal condition" vector stored in the crop catalog.
package soil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cropwise/cropwise/internal/validation"
)

// ErrInvalidSample is returned by Validate when a reading is missing, non-finite
// or out of its physical range.
var ErrInvalidSample = errors.New("invalid soil sample")

// Field identifies one of the seven soil/climate readings.
type Field int

const (
	Nitrogen Field = iota
	Phosphorus
	Potassium
	Temperature
	Humidity
	PH
	Rainfall
)

var fieldNames = [...]string{"nitrogen", "phosphorus", "potassium", "temperature", "humidity", "ph", "rainfall"}

// Fields returns the seven fields in canonical order.
func Fields() []Field {
	return []Field{Nitrogen, Phosphorus, Potassium, Temperature, Humidity, PH, Rainfall}
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// ParseField resolves a field by its wire name (case-insensitive).
func ParseField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown soil field %q", name)
}

// Sample is a complete set of readings. All seven fields are required.
type Sample struct {
	Nitrogen    float64 `json:"nitrogen" yaml:"nitrogen" validate:"finite,gte=0"`
	Phosphorus  float64 `json:"phosphorus" yaml:"phosphorus" validate:"finite,gte=0"`
	Potassium   float64 `json:"potassium" yaml:"potassium" validate:"finite,gte=0"`
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"finite,gte=-50,lte=60"`
	Humidity    float64 `json:"humidity" yaml:"humidity" validate:"finite,gte=0,lte=100"`
	PH          float64 `json:"ph" yaml:"ph" validate:"finite,gte=0,lte=14"`
	Rainfall    float64 `json:"rainfall" yaml:"rainfall" validate:"finite,gte=0"`
}

// Get returns the value of a single field.
func (s Sample) Get(f Field) float64 {
	switch f {
	case Nitrogen:
		return s.Nitrogen
	case Phosphorus:
		return s.Phosphorus
	case Potassium:
		return s.Potassium
	case Temperature:
		return s.Temperature
	case Humidity:
		return s.Humidity
	case PH:
		return s.PH
	case Rainfall:
		return s.Rainfall
	default:
		return 0
	}
}

// With returns a copy of s with one field replaced.
func (s Sample) With(f Field, v float64) Sample {
	switch f {
	case Nitrogen:
		s.Nitrogen = v
	case Phosphorus:
		s.Phosphorus = v
	case Potassium:
		s.Potassium = v
	case Temperature:
		s.Temperature = v
	case Humidity:
		s.Humidity = v
	case PH:
		s.PH = v
	case Rainfall:
		s.Rainfall = v
	}
	return s
}

// Key is the canonical serialization of the sample, used for memoization.
// Equal samples always produce equal keys.
func (s Sample) Key() string {
	var b strings.Builder
	for i, f := range Fields() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(s.Get(f), 'g', -1, 64))
	}
	return b.String()
}

// Validate checks that every reading is finite and inside its physical range.
// Scoring itself never validates; callers at the system edge do.
func (s Sample) Validate() error {
	if verr := validation.ValidateStruct(&s); verr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSample, verr)
	}
	return nil
}

// Partial is an ideal-condition vector. Any field may be absent.
type Partial struct {
	Nitrogen    *float64 `json:"nitrogen,omitempty" yaml:"nitrogen,omitempty"`
	Phosphorus  *float64 `json:"phosphorus,omitempty" yaml:"phosphorus,omitempty"`
	Potassium   *float64 `json:"potassium,omitempty" yaml:"potassium,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty" yaml:"humidity,omitempty"`
	PH          *float64 `json:"ph,omitempty" yaml:"ph,omitempty"`
	Rainfall    *float64 `json:"rainfall,omitempty" yaml:"rainfall,omitempty"`
}

func (p *Partial) ptr(f Field) **float64 {
	switch f {
	case Nitrogen:
		return &p.Nitrogen
	case Phosphorus:
		return &p.Phosphorus
	case Potassium:
		return &p.Potassium
	case Temperature:
		return &p.Temperature
	case Humidity:
		return &p.Humidity
	case PH:
		return &p.PH
	case Rainfall:
		return &p.Rainfall
	default:
		return nil
	}
}

// Get reports the ideal value for f and whether it is set.
func (p Partial) Get(f Field) (float64, bool) {
	ref := p.ptr(f)
	if ref == nil || *ref == nil {
		return 0, false
	}
	return **ref, true
}

// Target returns the ideal value for f, or 0 when the field is absent.
func (p Partial) Target(f Field) float64 {
	v, _ := p.Get(f)
	return v
}

// Set returns a copy of p with f set to v.
func (p Partial) Set(f Field, v float64) Partial {
	if ref := p.ptr(f); ref != nil {
		*ref = &v
	}
	return p
}

// Len returns how many fields are set.
func (p Partial) Len() int {
	n := 0
	for _, f := range Fields() {
		if _, ok := p.Get(f); ok {
			n++
		}
	}
	return n
}

// FullPartial lifts a complete sample into an ideal vector with every field set.
func FullPartial(s Sample) Partial {
	var p Partial
	for _, f := range Fields() {
		p = p.Set(f, s.Get(f))
	}
	return p
}

// Clone returns a copy that shares no pointers with p.
func (p Partial) Clone() Partial {
	var out Partial
	for _, f := range Fields() {
		if v, ok := p.Get(f); ok {
			out = out.Set(f, v)
		}
	}
	return out
}
