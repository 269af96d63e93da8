// Package validation holds the property payload rules for creation and
// partial update, plus the identifier shape check used by the routes.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/Abdurahmanit/property-service/internal/property/domain"
	"github.com/go-playground/validator/v10"
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// fieldOrder is the order in which violations are reported.
var fieldOrder = []string{"title", "description", "city", "address", "price", "surface", "rooms", "type"}

// input mirrors the wire payload. Pointers distinguish "absent" from zero.
// The create and update tag sets differ only in required vs omitempty.
// String lengths are counted in UTF-16 code units, as browsers count them.
type input struct {
	Title       *string  `json:"title" create:"required,min_u16=3,max_u16=100" update:"omitempty,min_u16=3,max_u16=100"`
	Description *string  `json:"description" create:"required,min_u16=10" update:"omitempty,min_u16=10"`
	City        *string  `json:"city" create:"required,min_u16=2" update:"omitempty,min_u16=2"`
	Address     *string  `json:"address" create:"required,min_u16=5" update:"omitempty,min_u16=5"`
	Price       *float64 `json:"price" create:"required,gt=0" update:"omitempty,gt=0"`
	Surface     *float64 `json:"surface" create:"required,gt=0" update:"omitempty,gt=0"`
	Rooms       *float64 `json:"rooms" create:"required,gt=0,lte=2147483647,integer" update:"omitempty,gt=0,lte=2147483647,integer"`
	Type        *string  `json:"type" create:"required,oneof=sale rent" update:"omitempty,oneof=sale rent"`
}

// Schema validates property payloads. It is safe for concurrent use.
type Schema struct {
	create *validator.Validate
	update *validator.Validate
	ids    *validator.Validate
}

func NewSchema() *Schema {
	return &Schema{
		create: newValidator("create"),
		update: newValidator("update"),
		ids:    newIDValidator(),
	}
}

// newIDValidator accepts hyphenated UUIDs in any letter case. The built-in
// uuid tag only matches lowercase hex.
func newIDValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("property_id", func(fl validator.FieldLevel) bool {
		_, ok := domain.NormalizeID(fl.Field().String())
		return ok
	})
	return v
}

func newValidator(tag string) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName(tag)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// rooms travels as a JSON number, so 1.5 must be caught here rather than by the decoder.
	_ = v.RegisterValidation("integer", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f == math.Trunc(f)
	})
	_ = v.RegisterValidation("min_u16", func(fl validator.FieldLevel) bool {
		return utf16Len(fl.Field().String()) >= intParam(fl)
	})
	_ = v.RegisterValidation("max_u16", func(fl validator.FieldLevel) bool {
		return utf16Len(fl.Field().String()) <= intParam(fl)
	})
	return v
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
			continue
		}
		n++
	}
	return n
}

func intParam(fl validator.FieldLevel) int {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("validation: bad parameter %q for %s", fl.Param(), fl.GetTag()))
	}
	return n
}

// DecodeCreate parses and validates a creation body. Unknown keys are ignored.
func (s *Schema) DecodeCreate(body []byte) (domain.NewProperty, error) {
	in, err := s.decode(body, ModeCreate)
	if err != nil {
		return domain.NewProperty{}, err
	}
	return domain.NewProperty{
		Title:       *in.Title,
		Description: *in.Description,
		City:        *in.City,
		Address:     *in.Address,
		Price:       *in.Price,
		Surface:     *in.Surface,
		Rooms:       int(*in.Rooms),
		Type:        domain.PropertyType(*in.Type),
	}, nil
}

// DecodeUpdate parses and validates a partial update body. Absent keys stay nil.
func (s *Schema) DecodeUpdate(body []byte) (domain.Patch, error) {
	in, err := s.decode(body, ModeUpdate)
	if err != nil {
		return domain.Patch{}, err
	}
	patch := domain.Patch{
		Title:       in.Title,
		Description: in.Description,
		City:        in.City,
		Address:     in.Address,
		Price:       in.Price,
		Surface:     in.Surface,
	}
	if in.Rooms != nil {
		rooms := int(*in.Rooms)
		patch.Rooms = &rooms
	}
	if in.Type != nil {
		t := domain.PropertyType(*in.Type)
		patch.Type = &t
	}
	return patch, nil
}

// CheckNew applies the create rules to an already typed payload.
func (s *Schema) CheckNew(n domain.NewProperty) error {
	rooms := float64(n.Rooms)
	typ := string(n.Type)
	in := input{
		Title:       &n.Title,
		Description: &n.Description,
		City:        &n.City,
		Address:     &n.Address,
		Price:       &n.Price,
		Surface:     &n.Surface,
		Rooms:       &rooms,
		Type:        &typ,
	}
	return s.check(in, ModeCreate, nil)
}

// CheckPatch applies the update rules to an already typed patch.
func (s *Schema) CheckPatch(p domain.Patch) error {
	in := input{
		Title:       p.Title,
		Description: p.Description,
		City:        p.City,
		Address:     p.Address,
		Price:       p.Price,
		Surface:     p.Surface,
	}
	if p.Rooms != nil {
		rooms := float64(*p.Rooms)
		in.Rooms = &rooms
	}
	if p.Type != nil {
		typ := string(*p.Type)
		in.Type = &typ
	}
	return s.check(in, ModeUpdate, nil)
}

// ValidateID checks that a path identifier is UUID-shaped before any lookup.
func (s *Schema) ValidateID(id string) error {
	if err := s.ids.Var(id, "required,property_id"); err != nil {
		return &Error{Fields: []FieldError{{Field: "id", Message: "id must be a valid UUID"}}}
	}
	return nil
}

func (s *Schema) decode(body []byte, mode Mode) (input, error) {
	var raw map[string]json.RawMessage
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return input{}, &Error{Fields: []FieldError{{Field: "body", Message: "body must be a JSON object"}}}
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return input{}, &Error{Fields: []FieldError{{Field: "body", Message: "body must be a JSON object"}}}
	}

	var in input
	typeErrs := make(map[string]string)
	decodeString(raw, "title", &in.Title, typeErrs)
	decodeString(raw, "description", &in.Description, typeErrs)
	decodeString(raw, "city", &in.City, typeErrs)
	decodeString(raw, "address", &in.Address, typeErrs)
	decodeNumber(raw, "price", &in.Price, typeErrs)
	decodeNumber(raw, "surface", &in.Surface, typeErrs)
	decodeNumber(raw, "rooms", &in.Rooms, typeErrs)
	decodeString(raw, "type", &in.Type, typeErrs)
	if _, bad := typeErrs["type"]; bad {
		typeErrs["type"] = messages["type"]["oneof"]
	}

	if err := s.check(in, mode, typeErrs); err != nil {
		return input{}, err
	}
	return in, nil
}

// check runs the tag rules and merges the result with decode-time type
// errors, one entry per field, in fieldOrder.
func (s *Schema) check(in input, mode Mode, typeErrs map[string]string) error {
	v := s.create
	if mode == ModeUpdate {
		v = s.update
	}

	byField := make(map[string]string, len(typeErrs))
	for k, msg := range typeErrs {
		byField[k] = msg
	}

	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validation: %w", err)
		}
		for _, fe := range verrs {
			if _, seen := byField[fe.Field()]; seen {
				continue
			}
			byField[fe.Field()] = message(fe.Field(), fe.Tag())
		}
	}

	if len(byField) == 0 {
		return nil
	}
	out := &Error{Fields: make([]FieldError, 0, len(byField))}
	for _, name := range fieldOrder {
		if msg, ok := byField[name]; ok {
			out.Fields = append(out.Fields, FieldError{Field: name, Message: msg})
		}
	}
	return out
}

func decodeString(raw map[string]json.RawMessage, key string, dst **string, errs map[string]string) {
	msg, ok := raw[key]
	if !ok {
		return
	}
	var s string
	if isNull(msg) || json.Unmarshal(msg, &s) != nil {
		errs[key] = key + " must be a string"
		return
	}
	*dst = &s
}

func decodeNumber(raw map[string]json.RawMessage, key string, dst **float64, errs map[string]string) {
	msg, ok := raw[key]
	if !ok {
		return
	}
	var f float64
	if isNull(msg) || json.Unmarshal(msg, &f) != nil {
		errs[key] = key + " must be a number"
		return
	}
	*dst = &f
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}
