package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
)

// BinaryCodec is the compact reflective serializer used on the wire.
//
// A record payload is a sequence of (field number, value) pairs. Field numbers are
// assigned from the record's exported fields in declaration order, starting at 1;
// zero-valued fields are skipped. Values are self-describing: a one-byte type tag
// followed by the data, so dynamic fields (any) round-trip without an external schema.
//
// The per-type schema is computed once and cached in a concurrent map. Deserialization
// builds instances with reflect.New and sets fields directly, so no application code
// runs while decoding.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return nil, errors.New("BinaryCodec: v must be a pointer to struct")
	}
	return marshalStruct(rv.Elem())
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.New("BinaryCodec: v must be a pointer to struct")
	}
	return unmarshalStruct(data, rv.Elem())
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// Value type tags.
const (
	tagNil byte = iota
	tagBool
	tagInt    // zigzag varint, all signed integer widths
	tagUint   // varint, all unsigned integer widths
	tagFloat  // 8 bytes big-endian, float32 widened to float64
	tagString // varint length + bytes
	tagBytes  // varint length + bytes
	tagList   // varint count + values
	tagMap    // varint count + (string key, value) pairs
	tagStruct // varint name length + name + varint payload length + record payload
)

// schema describes one record type: the exported fields in declaration order.
// Field i serializes under number i+1.
type schema struct {
	fields []int // index into the struct's fields
}

var schemaCache sync.Map // reflect.Type → *schema

func schemaOf(t reflect.Type) *schema {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*schema)
	}
	sch := &schema{}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			sch.fields = append(sch.fields, i)
		}
	}
	actual, _ := schemaCache.LoadOrStore(t, sch)
	return actual.(*schema)
}

func marshalStruct(rv reflect.Value) ([]byte, error) {
	sch := schemaOf(rv.Type())
	var buf []byte
	for i, idx := range sch.fields {
		fv := rv.Field(idx)
		if fv.IsZero() {
			continue
		}
		buf = binary.AppendUvarint(buf, uint64(i+1))
		var err error
		buf, err = appendValue(buf, fv)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", rv.Type().Name(), rv.Type().Field(idx).Name, err)
		}
	}
	return buf, nil
}

func unmarshalStruct(data []byte, rv reflect.Value) error {
	sch := schemaOf(rv.Type())
	r := &reader{data: data}
	for r.remaining() > 0 {
		num, err := r.uvarint()
		if err != nil {
			return err
		}
		if num == 0 || num > uint64(len(sch.fields)) {
			return fmt.Errorf("codec: unknown field number %d for %s", num, rv.Type().Name())
		}
		fv := rv.Field(sch.fields[num-1])
		val, err := r.value(fv.Type())
		if err != nil {
			return err
		}
		if err := Assign(fv, val); err != nil {
			return fmt.Errorf("field %s.%s: %w", rv.Type().Name(), rv.Type().Field(sch.fields[num-1]).Name, err)
		}
	}
	return nil
}

func appendValue(buf []byte, rv reflect.Value) ([]byte, error) {
	switch rv.Kind() {
	case reflect.Invalid:
		return append(buf, tagNil), nil
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return append(buf, tagNil), nil
		}
		if rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct {
			return appendStructValue(buf, rv.Elem())
		}
		return appendValue(buf, rv.Elem())
	case reflect.Bool:
		buf = append(buf, tagBool)
		if rv.Bool() {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf = append(buf, tagInt)
		return binary.AppendUvarint(buf, zigzag(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		buf = append(buf, tagUint)
		return binary.AppendUvarint(buf, rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		buf = append(buf, tagFloat)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(rv.Float())), nil
	case reflect.String:
		buf = append(buf, tagString)
		buf = binary.AppendUvarint(buf, uint64(rv.Len()))
		return append(buf, rv.String()...), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			buf = append(buf, tagBytes)
			buf = binary.AppendUvarint(buf, uint64(rv.Len()))
			return append(buf, rv.Bytes()...), nil
		}
		buf = append(buf, tagList)
		buf = binary.AppendUvarint(buf, uint64(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			var err error
			buf, err = appendValue(buf, rv.Index(i))
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("codec: unsupported map key type %s", rv.Type().Key())
		}
		buf = append(buf, tagMap)
		buf = binary.AppendUvarint(buf, uint64(rv.Len()))
		iter := rv.MapRange()
		for iter.Next() {
			buf = binary.AppendUvarint(buf, uint64(len(iter.Key().String())))
			buf = append(buf, iter.Key().String()...)
			var err error
			buf, err = appendValue(buf, iter.Value())
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	case reflect.Struct:
		return appendStructValue(buf, rv)
	default:
		return nil, fmt.Errorf("codec: unsupported kind %s", rv.Kind())
	}
}

func appendStructValue(buf []byte, rv reflect.Value) ([]byte, error) {
	payload, err := marshalStruct(rv)
	if err != nil {
		return nil, err
	}
	name := nameOfType(rv.Type())
	buf = append(buf, tagStruct)
	buf = binary.AppendUvarint(buf, uint64(len(name)))
	buf = append(buf, name...)
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...), nil
}

// reader walks a record payload. Decoded values come back in canonical dynamic form:
// nil, bool, int64, uint64, float64, string, []byte, []any, map[string]any, or a
// pointer to a decoded struct. Assign narrows them into concrete fields.
type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.off:])
	if n <= 0 {
		return 0, errors.New("codec: truncated varint")
	}
	r.off += n
	return v, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, errors.New("codec: truncated payload")
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// value decodes one tagged value. hint is the static type of the destination, used to
// pick the concrete struct type when the wire name is not registered; pass nil when
// there is no destination type.
func (r *reader) value(hint reflect.Type) (any, error) {
	if r.remaining() < 1 {
		return nil, errors.New("codec: truncated value")
	}
	tag := r.data[r.off]
	r.off++
	switch tag {
	case tagNil:
		return nil, nil
	case tagBool:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case tagInt:
		u, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		return unzigzag(u), nil
	case tagUint:
		u, err := r.uvarint()
		return u, err
	case tagFloat:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case tagString:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case tagBytes:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	case tagList:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		var elemHint reflect.Type
		if hint != nil && hint.Kind() == reflect.Slice {
			elemHint = hint.Elem()
		}
		out := make([]any, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := r.value(elemHint)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case tagMap:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		var valHint reflect.Type
		if hint != nil && hint.Kind() == reflect.Map {
			valHint = hint.Elem()
		}
		out := make(map[string]any, n)
		for i := uint64(0); i < n; i++ {
			kn, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			kb, err := r.take(int(kn))
			if err != nil {
				return nil, err
			}
			v, err := r.value(valHint)
			if err != nil {
				return nil, err
			}
			out[string(kb)] = v
		}
		return out, nil
	case tagStruct:
		nn, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		nb, err := r.take(int(nn))
		if err != nil {
			return nil, err
		}
		pn, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		payload, err := r.take(int(pn))
		if err != nil {
			return nil, err
		}
		st, err := structTypeFor(string(nb), hint)
		if err != nil {
			return nil, err
		}
		pv := reflect.New(st)
		if err := unmarshalStruct(payload, pv.Elem()); err != nil {
			return nil, err
		}
		return pv.Interface(), nil
	default:
		return nil, fmt.Errorf("codec: unknown value tag %d", tag)
	}
}

// structTypeFor resolves the concrete type for a decoded struct value: the destination's
// own struct type when it has one, otherwise the registered type for the wire name.
func structTypeFor(name string, hint reflect.Type) (reflect.Type, error) {
	if hint != nil {
		if hint.Kind() == reflect.Pointer && hint.Elem().Kind() == reflect.Struct {
			return hint.Elem(), nil
		}
		if hint.Kind() == reflect.Struct {
			return hint, nil
		}
	}
	if t, ok := typesByName.Load(name); ok {
		return t.(reflect.Type), nil
	}
	return nil, fmt.Errorf("codec: unregistered type %q", name)
}

// Assign stores a canonical decoded value into dst, converting where the wire form is
// wider than the field (int64 → int32, []any → []string, map[string]any → map[string]T).
func Assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	sv := reflect.ValueOf(v)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	switch dst.Kind() {
	case reflect.Interface:
		if sv.Type().Implements(dst.Type()) {
			dst.Set(sv)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if sv.Type().ConvertibleTo(dst.Type()) {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
	case reflect.String:
		if sv.Kind() == reflect.String {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
	case reflect.Slice:
		if list, ok := v.([]any); ok {
			out := reflect.MakeSlice(dst.Type(), len(list), len(list))
			for i, ev := range list {
				if err := Assign(out.Index(i), ev); err != nil {
					return err
				}
			}
			dst.Set(out)
			return nil
		}
	case reflect.Map:
		if m, ok := v.(map[string]any); ok && dst.Type().Key().Kind() == reflect.String {
			out := reflect.MakeMap(dst.Type())
			for k, ev := range m {
				val := reflect.New(dst.Type().Elem()).Elem()
				if err := Assign(val, ev); err != nil {
					return err
				}
				out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), val)
			}
			dst.Set(out)
			return nil
		}
	case reflect.Pointer, reflect.Struct:
		if sv.Kind() == reflect.Pointer && sv.Elem().Type() == dst.Type() {
			dst.Set(sv.Elem())
			return nil
		}
	}
	return fmt.Errorf("codec: cannot assign %T to %s", v, dst.Type())
}

func zigzag(i int64) uint64 {
	return uint64(i<<1) ^ uint64(i>>63)
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
