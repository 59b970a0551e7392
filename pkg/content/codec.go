package content

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// value is a decoded JSON value. Numbers are kept in their canonical
// serialized form, so re-encoding a payload is stable.
type value struct {
	typ jx.Type
	lit string // string content, canonical number or bool literal
	arr []*value
	obj *object
}

// object is a JSON object that keeps its keys in order of first appearance.
// A repeated key replaces the earlier value in place.
type object struct {
	keys []string
	vals map[string]*value
}

func newObject() *object {
	return &object{vals: map[string]*value{}}
}

func (o *object) get(key string) (*value, bool) {
	v, ok := o.vals[key]

	return v, ok
}

func (o *object) set(key string, v *value) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = v
}

func (o *object) setString(key, s string) {
	o.set(key, stringValue(s))
}

func stringValue(s string) *value {
	return &value{typ: jx.String, lit: s}
}

// decodeObject parses data as a single JSON object. Anything but whitespace
// after the object makes the payload invalid.
func decodeObject(data string) (*object, error) {
	d := jx.DecodeStr(data)
	if t := d.Next(); t != jx.Object {
		return nil, errors.Errorf("payload is %s, not an object", t)
	}

	v, err := decodeValue(d)
	if err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after payload")
	}

	return v.obj, nil
}

func decodeValue(d *jx.Decoder) (*value, error) {
	switch t := d.Next(); t {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, errors.Wrap(err, "string")
		}

		return stringValue(s), nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, errors.Wrap(err, "number")
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, errors.Wrap(err, "number")
		}
		if math.IsInf(f, 0) {
			// not representable; serialized as null like any non-finite number
			return &value{typ: jx.Null}, nil
		}

		return &value{typ: jx.Number, lit: formatNumber(f)}, nil
	case jx.Bool:
		b, err := d.Bool()
		if err != nil {
			return nil, errors.Wrap(err, "bool")
		}

		return &value{typ: jx.Bool, lit: strconv.FormatBool(b)}, nil
	case jx.Null:
		if err := d.Null(); err != nil {
			return nil, errors.Wrap(err, "null")
		}

		return &value{typ: jx.Null}, nil
	case jx.Array:
		v := &value{typ: jx.Array}
		err := d.Arr(func(d *jx.Decoder) error {
			elem, err := decodeValue(d)
			if err != nil {
				return err
			}
			v.arr = append(v.arr, elem)

			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "array")
		}

		return v, nil
	case jx.Object:
		o := newObject()
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			elem, err := decodeValue(d)
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			o.set(string(key), elem)

			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "object")
		}

		return &value{typ: jx.Object, obj: o}, nil
	default:
		return nil, errors.Errorf("unexpected %s", t)
	}
}

// encode serializes the object compactly, in key order, without HTML escaping.
func (o *object) encode() string {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	o.write(e)

	return e.String()
}

func (o *object) write(e *jx.Encoder) {
	e.ObjStart()
	for _, k := range o.keys {
		e.FieldStart(k)
		o.vals[k].write(e)
	}
	e.ObjEnd()
}

func (v *value) write(e *jx.Encoder) {
	switch v.typ {
	case jx.String:
		e.Str(v.lit)
	case jx.Number, jx.Bool:
		e.RawStr(v.lit)
	case jx.Array:
		e.ArrStart()
		for _, elem := range v.arr {
			elem.write(e)
		}
		e.ArrEnd()
	case jx.Object:
		v.obj.write(e)
	default:
		e.Null()
	}
}

// truthy reports whether the value would pass a boolean test in a browser
// client: false, null, zero and the empty string are falsy.
func (v *value) truthy() bool {
	switch v.typ {
	case jx.Null:
		return false
	case jx.Bool:
		return v.lit == "true"
	case jx.Number:
		return v.lit != "0"
	case jx.String:
		return v.lit != ""
	default:
		return true
	}
}

// text converts the value to the string a browser client would display.
func (v *value) text() string {
	switch v.typ {
	case jx.String, jx.Number, jx.Bool:
		return v.lit
	case jx.Array:
		parts := make([]string, len(v.arr))
		for i, elem := range v.arr {
			if elem.typ != jx.Null {
				parts[i] = elem.text()
			}
		}

		return strings.Join(parts, ",")
	case jx.Object:
		return "[object Object]"
	default:
		return "null"
	}
}

// formatNumber renders f the way browsers serialize numbers: shortest
// round-trip digits, plain notation between 1e-6 and 1e21, and no zero
// padding in exponents.
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	exp = strings.TrimLeft(exp[1:], "0")

	return mantissa + "e" + sign + exp
}
