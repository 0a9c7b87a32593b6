// Package tars implements a subset of Tencent's TARS/JCE binary wire
// format sufficient for Huya's danmaku protocol: tag/type head bytes,
// extended tags, and type-driven skip-decoding so a field can be located
// by tag regardless of field order or unrelated intervening fields.
package tars

import (
	"encoding/binary"
	"fmt"
)

type fieldType byte

const (
	typeByte fieldType = iota
	typeShort
	typeInt
	typeLong
	typeFloat
	typeDouble
	typeString1
	typeString4
	typeMap
	typeList
	typeStructBegin
	typeStructEnd
	typeZeroTag
	typeSimpleList
)

func parseHead(data []byte, pos *int) (tag byte, ty fieldType, err error) {
	if *pos >= len(data) {
		return 0, 0, fmt.Errorf("tars: unexpected EOF while reading head")
	}
	b := data[*pos]
	*pos++
	ty = fieldType(b & 0x0F)
	tag = b >> 4
	if tag == 15 {
		if *pos >= len(data) {
			return 0, 0, fmt.Errorf("tars: unexpected EOF while reading extended tag")
		}
		tag = data[*pos]
		*pos++
	}
	if ty > typeSimpleList {
		return 0, 0, fmt.Errorf("tars: unsupported field type %d", ty)
	}
	return tag, ty, nil
}

func skipValue(data []byte, pos *int, ty fieldType) error {
	switch ty {
	case typeByte:
		*pos += 1
	case typeShort:
		*pos += 2
	case typeInt, typeFloat:
		*pos += 4
	case typeLong, typeDouble:
		*pos += 8
	case typeZeroTag:
	case typeString1:
		if *pos >= len(data) {
			return fmt.Errorf("tars: unexpected EOF while reading string1 len")
		}
		l := int(data[*pos])
		*pos += 1 + l
	case typeString4:
		if *pos+4 > len(data) {
			return fmt.Errorf("tars: unexpected EOF while reading string4 len")
		}
		l := int(binary.BigEndian.Uint32(data[*pos : *pos+4]))
		*pos += 4 + l
	case typeStructBegin:
		for {
			_, innerTy, err := parseHead(data, pos)
			if err != nil {
				return err
			}
			if innerTy == typeStructEnd {
				break
			}
			if err := skipValue(data, pos, innerTy); err != nil {
				return err
			}
		}
	case typeStructEnd:
	case typeList:
		_, countTy, err := parseHead(data, pos)
		if err != nil {
			return err
		}
		count, err := readInt32Raw(data, pos, countTy)
		if err != nil {
			return err
		}
		for i := int32(0); i < count; i++ {
			_, elemTy, err := parseHead(data, pos)
			if err != nil {
				return err
			}
			if err := skipValue(data, pos, elemTy); err != nil {
				return err
			}
		}
	case typeSimpleList:
		_, elemTy, err := parseHead(data, pos)
		if err != nil {
			return err
		}
		if elemTy != typeByte {
			return fmt.Errorf("tars: simple_list only supports byte")
		}
		_, lenTy, err := parseHead(data, pos)
		if err != nil {
			return err
		}
		l, err := readInt32Raw(data, pos, lenTy)
		if err != nil {
			return err
		}
		*pos += int(l)
	case typeMap:
		return fmt.Errorf("tars: map not supported")
	default:
		return fmt.Errorf("tars: unsupported field type %d", ty)
	}
	if *pos > len(data) {
		return fmt.Errorf("tars: unexpected EOF while skipping value")
	}
	return nil
}

func readInt32Raw(data []byte, pos *int, ty fieldType) (int32, error) {
	switch ty {
	case typeZeroTag:
		return 0, nil
	case typeByte:
		if *pos >= len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading byte")
		}
		v := int32(int8(data[*pos]))
		*pos++
		return v, nil
	case typeShort:
		if *pos+2 > len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading short")
		}
		v := int32(int16(binary.BigEndian.Uint16(data[*pos : *pos+2])))
		*pos += 2
		return v, nil
	case typeInt:
		if *pos+4 > len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading int")
		}
		v := int32(binary.BigEndian.Uint32(data[*pos : *pos+4]))
		*pos += 4
		return v, nil
	case typeLong:
		if *pos+8 > len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading long")
		}
		v := int64(binary.BigEndian.Uint64(data[*pos : *pos+8]))
		*pos += 8
		return int32(v), nil
	default:
		return 0, fmt.Errorf("tars: type %d cannot be read as int32", ty)
	}
}

func readInt64Raw(data []byte, pos *int, ty fieldType) (int64, error) {
	switch ty {
	case typeZeroTag:
		return 0, nil
	case typeByte:
		if *pos >= len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading byte")
		}
		v := int64(int8(data[*pos]))
		*pos++
		return v, nil
	case typeShort:
		if *pos+2 > len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading short")
		}
		v := int64(int16(binary.BigEndian.Uint16(data[*pos : *pos+2])))
		*pos += 2
		return v, nil
	case typeInt:
		if *pos+4 > len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading int")
		}
		v := int64(int32(binary.BigEndian.Uint32(data[*pos : *pos+4])))
		*pos += 4
		return v, nil
	case typeLong:
		if *pos+8 > len(data) {
			return 0, fmt.Errorf("tars: unexpected EOF while reading long")
		}
		v := int64(binary.BigEndian.Uint64(data[*pos : *pos+8]))
		*pos += 8
		return v, nil
	default:
		return 0, fmt.Errorf("tars: type %d cannot be read as int64", ty)
	}
}

func readStringRaw(data []byte, pos *int, ty fieldType) (string, error) {
	switch ty {
	case typeString1:
		if *pos >= len(data) {
			return "", fmt.Errorf("tars: unexpected EOF while reading string1 len")
		}
		l := int(data[*pos])
		*pos++
		if *pos+l > len(data) {
			return "", fmt.Errorf("tars: unexpected EOF while reading string1")
		}
		s := string(data[*pos : *pos+l])
		*pos += l
		return s, nil
	case typeString4:
		if *pos+4 > len(data) {
			return "", fmt.Errorf("tars: unexpected EOF while reading string4 len")
		}
		l := int(binary.BigEndian.Uint32(data[*pos : *pos+4]))
		*pos += 4
		if *pos+l > len(data) {
			return "", fmt.Errorf("tars: unexpected EOF while reading string4")
		}
		s := string(data[*pos : *pos+l])
		*pos += l
		return s, nil
	default:
		return "", fmt.Errorf("tars: type %d cannot be read as string", ty)
	}
}

// Decoder locates fields by tag within a single TARS struct's byte range.
type Decoder struct {
	data []byte
}

// NewDecoder wraps data for tag-addressed field reads.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) findField(tag byte) (fieldType, int, bool, error) {
	pos := 0
	for pos < len(d.data) {
		t, ty, err := parseHead(d.data, &pos)
		if err != nil {
			return 0, 0, false, err
		}
		if ty == typeStructEnd {
			break
		}
		if t == tag {
			return ty, pos, true, nil
		}
		if err := skipValue(d.data, &pos, ty); err != nil {
			return 0, 0, false, err
		}
	}
	return 0, 0, false, nil
}

// ReadInt32 returns the tag's value, or default if absent (erroring only
// if required is true and the tag is missing).
func (d *Decoder) ReadInt32(tag byte, required bool, def int32) (int32, error) {
	ty, pos, ok, err := d.findField(tag)
	if err != nil {
		return 0, err
	}
	if !ok {
		if required {
			return 0, fmt.Errorf("tars: missing required int32 field tag=%d", tag)
		}
		return def, nil
	}
	return readInt32Raw(d.data, &pos, ty)
}

// ReadInt64 is the int64 variant of ReadInt32.
func (d *Decoder) ReadInt64(tag byte, required bool, def int64) (int64, error) {
	ty, pos, ok, err := d.findField(tag)
	if err != nil {
		return 0, err
	}
	if !ok {
		if required {
			return 0, fmt.Errorf("tars: missing required int64 field tag=%d", tag)
		}
		return def, nil
	}
	return readInt64Raw(d.data, &pos, ty)
}

// ReadString returns the tag's string value, or default if absent.
func (d *Decoder) ReadString(tag byte, required bool, def string) (string, error) {
	ty, pos, ok, err := d.findField(tag)
	if err != nil {
		return "", err
	}
	if !ok {
		if required {
			return "", fmt.Errorf("tars: missing required string field tag=%d", tag)
		}
		return def, nil
	}
	return readStringRaw(d.data, &pos, ty)
}

// ReadBytes returns the tag's SimpleList<byte> payload, or default if absent.
func (d *Decoder) ReadBytes(tag byte, required bool, def []byte) ([]byte, error) {
	ty, pos, ok, err := d.findField(tag)
	if err != nil {
		return nil, err
	}
	if !ok {
		if required {
			return nil, fmt.Errorf("tars: missing required bytes field tag=%d", tag)
		}
		return def, nil
	}
	if ty != typeSimpleList {
		return nil, fmt.Errorf("tars: type %d cannot be read as bytes", ty)
	}
	_, elemTy, err := parseHead(d.data, &pos)
	if err != nil {
		return nil, err
	}
	if elemTy != typeByte {
		return nil, fmt.Errorf("tars: simple_list only supports byte")
	}
	_, lenTy, err := parseHead(d.data, &pos)
	if err != nil {
		return nil, err
	}
	l, err := readInt32Raw(d.data, &pos, lenTy)
	if err != nil {
		return nil, err
	}
	if pos+int(l) > len(d.data) {
		return nil, fmt.Errorf("tars: unexpected EOF while reading bytes")
	}
	return d.data[pos : pos+int(l)], nil
}

// ReadStruct locates the StructBegin..StructEnd byte range at tag and
// returns a Decoder scoped to it, for decoding nested TARS messages (e.g.
// the sender struct inside a Huya chat message).
func (d *Decoder) ReadStruct(tag byte, required bool) (*Decoder, bool, error) {
	ty, pos, ok, err := d.findField(tag)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		if required {
			return nil, false, fmt.Errorf("tars: missing required struct field tag=%d", tag)
		}
		return nil, false, nil
	}
	if ty != typeStructBegin {
		return nil, false, fmt.Errorf("tars: field tag=%d is not struct_begin", tag)
	}
	start := pos
	scan := start
	for {
		_, innerTy, err := parseHead(d.data, &scan)
		if err != nil {
			return nil, false, err
		}
		if innerTy == typeStructEnd {
			break
		}
		if err := skipValue(d.data, &scan, innerTy); err != nil {
			return nil, false, err
		}
	}
	return NewDecoder(d.data[start:scan]), true, nil
}

// Encoder builds a TARS-encoded byte buffer field by field.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) writeHead(tag byte, ty fieldType) {
	if tag < 15 {
		e.buf = append(e.buf, (tag<<4)|byte(ty))
	} else {
		e.buf = append(e.buf, 0xF0|byte(ty), tag)
	}
}

// WriteInt32 encodes value at tag, using the ZeroTag optimization for 0.
func (e *Encoder) WriteInt32(tag byte, value int32) {
	if value == 0 {
		e.writeHead(tag, typeZeroTag)
		return
	}
	e.writeHead(tag, typeInt)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(value))
	e.buf = append(e.buf, b[:]...)
}

// WriteString encodes value at tag as String1 (len<255) or String4.
func (e *Encoder) WriteString(tag byte, value string) {
	b := []byte(value)
	if len(b) < 255 {
		e.writeHead(tag, typeString1)
		e.buf = append(e.buf, byte(len(b)))
	} else {
		e.writeHead(tag, typeString4)
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(b)))
		e.buf = append(e.buf, lb[:]...)
	}
	e.buf = append(e.buf, b...)
}

// WriteBytes encodes b at tag as a SimpleList<byte>.
func (e *Encoder) WriteBytes(tag byte, b []byte) {
	e.writeHead(tag, typeSimpleList)
	e.writeHead(0, typeByte)
	e.WriteInt32(0, int32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteList encodes items at tag as a List<string>.
func (e *Encoder) WriteList(tag byte, items []string) {
	e.writeHead(tag, typeList)
	e.WriteInt32(0, int32(len(items)))
	for _, item := range items {
		e.WriteString(0, item)
	}
}

// WriteStructBegin/WriteStructEnd bracket a nested struct at tag.
func (e *Encoder) WriteStructBegin(tag byte) {
	e.writeHead(tag, typeStructBegin)
}

func (e *Encoder) WriteStructEnd() {
	e.writeHead(0, typeStructEnd)
}
