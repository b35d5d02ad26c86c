package keys

import (
	"bytes"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// NamedArg is a keyword argument. Build one with Named.
type NamedArg struct {
	Name  string
	Value any
}

// Named wraps a keyword argument for Hash and Typed.
func Named(name string, value any) NamedArg { return NamedArg{Name: name, Value: value} }

// Hash builds an untyped Key.
//
// A single positional argument with no named arguments is encoded on its
// own, without composite framing. Otherwise the Key is the ordered list of
// positional arguments, followed (if there are named arguments) by a keyword
// marker and the name/value pairs sorted by name.
func Hash(args ...any) (Key, error) { return build(false, args) }

// Typed builds a Key like Hash but appends the type of every positional
// argument and of every named argument value, so equal values of different
// types never collide. Typed keys are always composite.
func Typed(args ...any) (Key, error) { return build(true, args) }

// Of is Hash for a single value.
func Of(v any) (Key, error) { return build(false, []any{v}) }

// Must panics if err is non-nil. Intended for keys built from constants.
func Must(k Key, err error) Key {
	if err != nil {
		panic(err)
	}
	return k
}

var (
	_ Func = Hash
	_ Func = Typed
)

func build(typed bool, args []any) (Key, error) {
	pos := make([]any, 0, len(args))
	var named []NamedArg
	for _, a := range args {
		if na, ok := a.(NamedArg); ok {
			named = append(named, na)
			continue
		}
		pos = append(pos, a)
	}
	sort.SliceStable(named, func(i, j int) bool { return named[i].Name < named[j].Name })

	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&buf)
	w := writer{enc: enc}

	if !typed && len(named) == 0 && len(pos) == 1 {
		if err := w.value(reflect.ValueOf(pos[0])); err != nil {
			return Key{}, fmt.Errorf("argument 0: %w", err)
		}
		return newKey(buf.Bytes()), nil
	}

	n := len(pos)
	if len(named) > 0 {
		n += 1 + 2*len(named)
	}
	if typed {
		n += len(pos) + len(named)
	}
	if err := enc.EncodeArrayLen(n); err != nil {
		return Key{}, err
	}

	for i, a := range pos {
		if err := w.value(reflect.ValueOf(a)); err != nil {
			return Key{}, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	if len(named) > 0 {
		// The keyword marker is an empty map: no argument can encode to one.
		if err := enc.EncodeMapLen(0); err != nil {
			return Key{}, err
		}
		for _, na := range named {
			if err := enc.EncodeString(na.Name); err != nil {
				return Key{}, err
			}
			if err := w.value(reflect.ValueOf(na.Value)); err != nil {
				return Key{}, fmt.Errorf("argument %q: %w", na.Name, err)
			}
		}
	}
	if typed {
		for _, a := range pos {
			if err := w.typeID(a); err != nil {
				return Key{}, err
			}
		}
		for _, na := range named {
			if err := w.typeID(na.Value); err != nil {
				return Key{}, err
			}
		}
	}
	return newKey(buf.Bytes()), nil
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// writer encodes normalized argument values.
//
// Frames that could otherwise be confused with a composite key use
// single-purpose maps, since maps are never valid arguments:
//
//	array   {"a": [elems...]}
//	struct  {"s": type, "f": [fields...]}  or  {"s": type, "x": text}
//	complex {"c": [re, im]}
//	type id {"t": name}
type writer struct {
	enc *msgpack.Encoder
}

func (w writer) value(v reflect.Value) error {
	if !v.IsValid() {
		return w.enc.EncodeNil()
	}
	switch v.Kind() {
	case reflect.Bool:
		return w.enc.EncodeBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return w.enc.EncodeInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return w.uint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return w.float(v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		if imag(c) == 0 {
			return w.float(real(c))
		}
		if err := w.frame("c"); err != nil {
			return err
		}
		if err := w.enc.EncodeArrayLen(2); err != nil {
			return err
		}
		if err := w.float(real(c)); err != nil {
			return err
		}
		return w.float(imag(c))
	case reflect.String:
		return w.enc.EncodeString(v.String())
	case reflect.Interface:
		if v.IsNil() {
			return w.enc.EncodeNil()
		}
		return w.value(v.Elem())
	case reflect.Array:
		if err := w.frame("a"); err != nil {
			return err
		}
		if err := w.enc.EncodeArrayLen(v.Len()); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := w.value(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		return w.structValue(v)
	default:
		// Pointer, slice, map, func, chan, unsafe pointer.
		return fmt.Errorf("%w: %s", ErrUnhashable, v.Type())
	}
}

func (w writer) structValue(v reflect.Value) error {
	t := v.Type()
	if err := w.enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := w.enc.EncodeString("s"); err != nil {
		return err
	}
	if err := w.enc.EncodeString(typeName(t)); err != nil {
		return err
	}

	// Values with a stable text form (time.Time and the like) are keyed by it.
	if t.Implements(textMarshalerType) && v.CanInterface() {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err == nil {
			if err := w.enc.EncodeString("x"); err != nil {
				return err
			}
			return w.enc.EncodeString(string(text))
		}
	}

	if err := w.enc.EncodeString("f"); err != nil {
		return err
	}
	if err := w.enc.EncodeArrayLen(v.NumField()); err != nil {
		return err
	}
	for i := 0; i < v.NumField(); i++ {
		if err := w.value(v.Field(i)); err != nil {
			return fmt.Errorf("field %s.%s: %w", t.Name(), t.Field(i).Name, err)
		}
	}
	return nil
}

// frame opens a single-entry map tagged with name; the caller writes the value.
func (w writer) frame(name string) error {
	if err := w.enc.EncodeMapLen(1); err != nil {
		return err
	}
	return w.enc.EncodeString(name)
}

func (w writer) typeID(a any) error {
	if err := w.frame("t"); err != nil {
		return err
	}
	if na, ok := a.(NamedArg); ok {
		a = na.Value
	}
	if a == nil {
		return w.enc.EncodeString("nil")
	}
	return w.enc.EncodeString(typeName(reflect.TypeOf(a)))
}

// uint keeps values that fit int64 on the signed path so 1 and uint(1) agree.
func (w writer) uint(u uint64) error {
	if u <= math.MaxInt64 {
		return w.enc.EncodeInt(int64(u))
	}
	return w.enc.EncodeUint(u)
}

// float encodes integral values as integers so 1.0 and 1 agree.
// All NaNs share one bit pattern.
func (w writer) float(f float64) error {
	if f == math.Trunc(f) {
		switch {
		case f >= -(1<<63) && f < 1<<63:
			return w.enc.EncodeInt(int64(f))
		case f >= 1<<63 && f < 1<<64:
			return w.enc.EncodeUint(uint64(f))
		}
	}
	if math.IsNaN(f) {
		f = math.NaN()
	}
	return w.enc.EncodeFloat64(f)
}

// typeName is stable across processes: package path plus name for named
// types, the type literal otherwise.
func typeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
