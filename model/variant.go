/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"fmt"

	"github.com/opcua-pubsub/uadp/buffer"
)

// BuiltInType is the OPC UA built-in type id, as carried in the low 6 bits
// of a Variant's encoding byte. Only the scalar numeric/string subset this
// codec supports is named here; others decode to ErrUnsupportedVariantType.
type BuiltInType uint8

// Built-in type ids used by the Variant field encoding (OPC UA Part 6
// Table 1). Only these are supported; RawData/DataValue field encodings
// never reach this type.
const (
	TypeBoolean BuiltInType = 1
	TypeSByte   BuiltInType = 2
	TypeByte    BuiltInType = 3
	TypeInt16   BuiltInType = 4
	TypeUInt16  BuiltInType = 5
	TypeInt32   BuiltInType = 6
	TypeUInt32  BuiltInType = 7
	TypeInt64   BuiltInType = 8
	TypeUInt64  BuiltInType = 9
	TypeFloat   BuiltInType = 10
	TypeDouble  BuiltInType = 11
	TypeString  BuiltInType = 12
)

const (
	variantArrayFlag          = 0x80
	variantArrayDimensionFlag = 0x40
	variantTypeMask           = 0x3f
)

// Variant is a tagged union of the scalar OPC UA built-in types this codec
// encodes as DataSetMessage fields, plus a 1-dimensional array of Boolean,
// Byte, UInt16, UInt32, Float or String elements; arrays of the other
// types are not encoded or decoded (ErrUnsupportedVariantType on read).
// The type tag determines which field is live; scalars are built with the
// New* constructors, and arrays only by ReadVariant.
type Variant struct {
	typ     BuiltInType
	isArray bool

	b    bool
	i8   int8
	u8   byte
	i16  int16
	u16  uint16
	i32  int32
	u32  uint32
	i64  int64
	u64  uint64
	f32  float32
	f64  float64
	str  string
	strs []string

	arrBool []bool
	arrI8   []int8
	arrU8   []byte
	arrI16  []int16
	arrU16  []uint16
	arrI32  []int32
	arrU32  []uint32
	arrI64  []int64
	arrU64  []uint64
	arrF32  []float32
	arrF64  []float64
}

// Type returns the Variant's built-in type tag.
func (v Variant) Type() BuiltInType { return v.typ }

// IsArray reports whether the Variant holds a 1-dimensional array.
func (v Variant) IsArray() bool { return v.isArray }

func NewBooleanVariant(val bool) Variant   { return Variant{typ: TypeBoolean, b: val} }
func NewSByteVariant(val int8) Variant     { return Variant{typ: TypeSByte, i8: val} }
func NewByteVariant(val byte) Variant      { return Variant{typ: TypeByte, u8: val} }
func NewInt16Variant(val int16) Variant    { return Variant{typ: TypeInt16, i16: val} }
func NewUInt16Variant(val uint16) Variant  { return Variant{typ: TypeUInt16, u16: val} }
func NewInt32Variant(val int32) Variant    { return Variant{typ: TypeInt32, i32: val} }
func NewUInt32Variant(val uint32) Variant  { return Variant{typ: TypeUInt32, u32: val} }
func NewInt64Variant(val int64) Variant    { return Variant{typ: TypeInt64, i64: val} }
func NewUInt64Variant(val uint64) Variant  { return Variant{typ: TypeUInt64, u64: val} }
func NewFloatVariant(val float32) Variant  { return Variant{typ: TypeFloat, f32: val} }
func NewDoubleVariant(val float64) Variant { return Variant{typ: TypeDouble, f64: val} }
func NewStringVariant(val string) Variant  { return Variant{typ: TypeString, str: val} }

// Accessors. ok is false if the Variant does not hold that type.

func (v Variant) Bool() (bool, bool)      { return v.b, v.typ == TypeBoolean && !v.isArray }
func (v Variant) SByte() (int8, bool)     { return v.i8, v.typ == TypeSByte && !v.isArray }
func (v Variant) Byte() (byte, bool)      { return v.u8, v.typ == TypeByte && !v.isArray }
func (v Variant) Int16() (int16, bool)    { return v.i16, v.typ == TypeInt16 && !v.isArray }
func (v Variant) UInt16() (uint16, bool)  { return v.u16, v.typ == TypeUInt16 && !v.isArray }
func (v Variant) Int32() (int32, bool)    { return v.i32, v.typ == TypeInt32 && !v.isArray }
func (v Variant) UInt32() (uint32, bool)  { return v.u32, v.typ == TypeUInt32 && !v.isArray }
func (v Variant) Int64() (int64, bool)    { return v.i64, v.typ == TypeInt64 && !v.isArray }
func (v Variant) UInt64() (uint64, bool)  { return v.u64, v.typ == TypeUInt64 && !v.isArray }
func (v Variant) Float() (float32, bool)  { return v.f32, v.typ == TypeFloat && !v.isArray }
func (v Variant) Double() (float64, bool) { return v.f64, v.typ == TypeDouble && !v.isArray }
func (v Variant) String() (string, bool)  { return v.str, v.typ == TypeString && !v.isArray }

// Equal reports whether two Variants carry the same type and value.
// Floating-point fields compare bit-for-bit, matching the round-trip
// property's "field-for-field Variant equality".
func (v Variant) Equal(o Variant) bool {
	if v.typ != o.typ || v.isArray != o.isArray {
		return false
	}
	if v.isArray {
		return variantArraysEqual(v, o)
	}
	switch v.typ {
	case TypeBoolean:
		return v.b == o.b
	case TypeSByte:
		return v.i8 == o.i8
	case TypeByte:
		return v.u8 == o.u8
	case TypeInt16:
		return v.i16 == o.i16
	case TypeUInt16:
		return v.u16 == o.u16
	case TypeInt32:
		return v.i32 == o.i32
	case TypeUInt32:
		return v.u32 == o.u32
	case TypeInt64:
		return v.i64 == o.i64
	case TypeUInt64:
		return v.u64 == o.u64
	case TypeFloat:
		return v.f32 == o.f32
	case TypeDouble:
		return v.f64 == o.f64
	case TypeString:
		return v.str == o.str
	}
	return false
}

func variantArraysEqual(v, o Variant) bool {
	switch v.typ {
	case TypeBoolean:
		return boolSliceEqual(v.arrBool, o.arrBool)
	case TypeByte:
		return byteSliceEqual(v.arrU8, o.arrU8)
	case TypeUInt16:
		return u16SliceEqual(v.arrU16, o.arrU16)
	case TypeUInt32:
		return u32SliceEqual(v.arrU32, o.arrU32)
	case TypeFloat:
		return f32SliceEqual(v.arrF32, o.arrF32)
	case TypeString:
		return strSliceEqual(v.strs, o.strs)
	}
	return false
}

func boolSliceEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func byteSliceEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func u16SliceEqual(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func u32SliceEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func f32SliceEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func strSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FixedSize returns the scalar wire size in bytes and true if the Variant's
// type has a fixed encoded length (excludes String and all arrays). Used
// by preencode to decide which fields are safe to fix up in place.
func (v Variant) FixedSize() (int, bool) {
	if v.isArray {
		return 0, false
	}
	switch v.typ {
	case TypeBoolean, TypeSByte, TypeByte:
		return 1, true
	case TypeInt16, TypeUInt16:
		return 2, true
	case TypeInt32, TypeUInt32, TypeFloat:
		return 4, true
	case TypeInt64, TypeUInt64, TypeDouble:
		return 8, true
	}
	return 0, false
}

// FixedBody returns the wire bytes of a fixed-size scalar Variant's body
// (excluding the 1-byte encoding tag). ok is false for String, arrays, and
// any other variable-length encoding. Used by preencode to read a field's
// current value for an in-place buffer fix-up.
func (v Variant) FixedBody() ([]byte, bool) {
	n, ok := v.FixedSize()
	if !ok {
		return nil, false
	}
	b := buffer.New(n, n)
	if err := v.writeScalarBody(b); err != nil {
		return nil, false
	}
	return b.Bytes(), true
}

// WriteTo encodes the Variant per the OPC UA binary Variant rule: an
// encoding byte (type id in bits 0-5, array flag in bit 7, array-dimensions
// flag in bit 6) followed by the body.
func (v Variant) WriteTo(b *buffer.Buffer) error {
	encByte := byte(v.typ) & variantTypeMask
	if v.isArray {
		encByte |= variantArrayFlag
	}
	if err := b.WriteByte(encByte); err != nil {
		return err
	}
	if v.isArray {
		return v.writeArrayBody(b)
	}
	return v.writeScalarBody(b)
}

func (v Variant) writeScalarBody(b *buffer.Buffer) error {
	switch v.typ {
	case TypeBoolean:
		if v.b {
			return b.WriteByte(1)
		}
		return b.WriteByte(0)
	case TypeSByte:
		return b.WriteByte(byte(v.i8))
	case TypeByte:
		return b.WriteByte(v.u8)
	case TypeInt16:
		return b.WriteUint16(uint16(v.i16))
	case TypeUInt16:
		return b.WriteUint16(v.u16)
	case TypeInt32:
		return b.WriteInt32(v.i32)
	case TypeUInt32:
		return b.WriteUint32(v.u32)
	case TypeInt64:
		return b.WriteUint64(uint64(v.i64))
	case TypeUInt64:
		return b.WriteUint64(v.u64)
	case TypeFloat:
		return b.WriteFloat(v.f32)
	case TypeDouble:
		return b.WriteDouble(v.f64)
	case TypeString:
		return b.WriteString(v.str, false)
	default:
		return fmt.Errorf("model: unsupported variant type %d", v.typ)
	}
}

func (v Variant) writeArrayBody(b *buffer.Buffer) error {
	switch v.typ {
	case TypeBoolean:
		if err := b.WriteInt32(int32(len(v.arrBool))); err != nil {
			return err
		}
		for _, e := range v.arrBool {
			if err := NewBooleanVariant(e).writeScalarBody(b); err != nil {
				return err
			}
		}
	case TypeByte:
		if err := b.WriteInt32(int32(len(v.arrU8))); err != nil {
			return err
		}
		return b.WriteBytes(v.arrU8)
	case TypeUInt16:
		if err := b.WriteInt32(int32(len(v.arrU16))); err != nil {
			return err
		}
		for _, e := range v.arrU16 {
			if err := b.WriteUint16(e); err != nil {
				return err
			}
		}
	case TypeUInt32:
		if err := b.WriteInt32(int32(len(v.arrU32))); err != nil {
			return err
		}
		for _, e := range v.arrU32 {
			if err := b.WriteUint32(e); err != nil {
				return err
			}
		}
	case TypeFloat:
		if err := b.WriteInt32(int32(len(v.arrF32))); err != nil {
			return err
		}
		for _, e := range v.arrF32 {
			if err := b.WriteFloat(e); err != nil {
				return err
			}
		}
	case TypeString:
		if err := b.WriteInt32(int32(len(v.strs))); err != nil {
			return err
		}
		for _, e := range v.strs {
			if err := b.WriteString(e, false); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("model: unsupported array variant type %d", v.typ)
	}
	return nil
}

// ErrUnsupportedVariantType is returned by ReadVariant for an encoding byte
// whose type id is not one this codec implements.
var ErrUnsupportedVariantType = fmt.Errorf("model: unsupported variant encoding")

// ReadVariant decodes a Variant per the OPC UA binary Variant rule.
func ReadVariant(b *buffer.Buffer) (Variant, error) {
	encByte, err := b.ReadByte()
	if err != nil {
		return Variant{}, err
	}
	typ := BuiltInType(encByte & variantTypeMask)
	isArray := encByte&variantArrayFlag != 0
	hasDims := encByte&variantArrayDimensionFlag != 0

	var v Variant
	if isArray {
		v, err = readArrayBody(typ, b)
	} else {
		v, err = readScalarBody(typ, b)
	}
	if err != nil {
		return Variant{}, err
	}
	if hasDims {
		// ArrayDimensions never emitted by this encoder; consume and
		// ignore if a peer sent them.
		n, err := b.ReadInt32()
		if err != nil {
			return Variant{}, err
		}
		for i := int32(0); i < n; i++ {
			if _, err := b.ReadInt32(); err != nil {
				return Variant{}, err
			}
		}
	}
	return v, nil
}

func readScalarBody(typ BuiltInType, b *buffer.Buffer) (Variant, error) {
	switch typ {
	case TypeBoolean:
		x, err := b.ReadByte()
		return NewBooleanVariant(x != 0), err
	case TypeSByte:
		x, err := b.ReadByte()
		return NewSByteVariant(int8(x)), err
	case TypeByte:
		x, err := b.ReadByte()
		return NewByteVariant(x), err
	case TypeInt16:
		x, err := b.ReadUint16()
		return NewInt16Variant(int16(x)), err
	case TypeUInt16:
		x, err := b.ReadUint16()
		return NewUInt16Variant(x), err
	case TypeInt32:
		x, err := b.ReadInt32()
		return NewInt32Variant(x), err
	case TypeUInt32:
		x, err := b.ReadUint32()
		return NewUInt32Variant(x), err
	case TypeInt64:
		x, err := b.ReadUint64()
		return NewInt64Variant(int64(x)), err
	case TypeUInt64:
		x, err := b.ReadUint64()
		return NewUInt64Variant(x), err
	case TypeFloat:
		x, err := b.ReadFloat()
		return NewFloatVariant(x), err
	case TypeDouble:
		x, err := b.ReadDouble()
		return NewDoubleVariant(x), err
	case TypeString:
		s, _, err := b.ReadString()
		return NewStringVariant(s), err
	default:
		return Variant{}, ErrUnsupportedVariantType
	}
}

func readArrayBody(typ BuiltInType, b *buffer.Buffer) (Variant, error) {
	n, err := b.ReadInt32()
	if err != nil {
		return Variant{}, err
	}
	if n < 0 {
		n = 0
	}
	switch typ {
	case TypeBoolean:
		arr := make([]bool, n)
		for i := range arr {
			x, err := b.ReadByte()
			if err != nil {
				return Variant{}, err
			}
			arr[i] = x != 0
		}
		return Variant{typ: typ, isArray: true, arrBool: arr}, nil
	case TypeByte:
		raw, err := b.ReadBytes(int(n))
		if err != nil {
			return Variant{}, err
		}
		arr := append([]byte(nil), raw...)
		return Variant{typ: typ, isArray: true, arrU8: arr}, nil
	case TypeUInt16:
		arr := make([]uint16, n)
		for i := range arr {
			x, err := b.ReadUint16()
			if err != nil {
				return Variant{}, err
			}
			arr[i] = x
		}
		return Variant{typ: typ, isArray: true, arrU16: arr}, nil
	case TypeUInt32:
		arr := make([]uint32, n)
		for i := range arr {
			x, err := b.ReadUint32()
			if err != nil {
				return Variant{}, err
			}
			arr[i] = x
		}
		return Variant{typ: typ, isArray: true, arrU32: arr}, nil
	case TypeFloat:
		arr := make([]float32, n)
		for i := range arr {
			x, err := b.ReadFloat()
			if err != nil {
				return Variant{}, err
			}
			arr[i] = x
		}
		return Variant{typ: typ, isArray: true, arrF32: arr}, nil
	case TypeString:
		arr := make([]string, n)
		for i := range arr {
			s, _, err := b.ReadString()
			if err != nil {
				return Variant{}, err
			}
			arr[i] = s
		}
		return Variant{typ: typ, isArray: true, strs: arr}, nil
	default:
		return Variant{}, ErrUnsupportedVariantType
	}
}
