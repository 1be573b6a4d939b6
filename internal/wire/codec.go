package wire

import (
	"fmt"
	"sort"

	"github.com/paynet/fep/internal/ferr"
)

// Codec is a stateless, reentrant schema-driven encoder/decoder. A single
// Codec value may be shared across goroutines.
type Codec struct{}

// NewCodec returns a ready-to-use Codec.
func NewCodec() *Codec { return &Codec{} }

// reader is a small cursor over a decode buffer, tracking offset for
// ParseError reporting.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ferr.Parse(r.pos, fmt.Sprintf("%d bytes", n), fmt.Sprintf("%d bytes available", r.remaining()))
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Decode parses a wire buffer per schema into a Message.
func (c *Codec) Decode(data []byte, schema *MessageSchema) (*Message, error) {
	r := &reader{buf: data}

	if schema.Header != nil {
		if schema.Header.IncludeLength {
			lenBytes, err := r.take(schema.Header.LengthBytes)
			if err != nil {
				return nil, err
			}
			if _, err := bcdDecode(lenBytes); err != nil {
				return nil, ferr.Parse(0, "BCD length prefix", "invalid BCD")
			}
		}
		for _, hf := range schema.Header.Fields {
			if _, err := decodeOneField(r, hf.FieldDescriptor); err != nil {
				return nil, err
			}
		}
	}

	mtiBytes, err := r.take(2)
	if err != nil {
		return nil, err
	}
	mti, err := bcdDecode(mtiBytes)
	if err != nil {
		return nil, ferr.Parse(r.pos-2, "BCD MTI", "invalid BCD")
	}

	primaryBytes, err := r.take(8)
	if err != nil {
		return nil, err
	}
	primary, err := BitmapFromBytes(primaryBytes)
	if err != nil {
		return nil, err
	}
	if primary.HasSecondary() {
		secondaryBytes, err := r.take(8)
		if err != nil {
			return nil, err
		}
		full, err := BitmapFromBytes(append(append([]byte{}, primaryBytes...), secondaryBytes...))
		if err != nil {
			return nil, err
		}
		primary = full
	}

	msg := &Message{MTI: mti, Bitmap: primary, Fields: make(map[string]Value)}

	for _, fieldNum := range primary.Fields() {
		id := fmt.Sprintf("%d", fieldNum)
		fd, ok := schema.Field(id)
		if !ok {
			return nil, ferr.Field(id, fmt.Errorf("field %s set in bitmap but not present in schema %s", id, schema.Name))
		}
		val, err := decodeOneField(r, *fd)
		if err != nil {
			return nil, err
		}
		msg.Fields[id] = val
	}

	if schema.Trailer != nil {
		for _, tf := range schema.Trailer.Fields {
			if _, err := decodeOneField(r, tf.FieldDescriptor); err != nil {
				return nil, err
			}
		}
	}

	return msg, nil
}

func decodeOneField(r *reader, fd FieldDescriptor) (Value, error) {
	if fd.DataType == TypeComposite {
		return decodeComposite(r, fd)
	}

	n := fd.Length
	if fd.LengthType != LengthFixed {
		prefixEnc := fd.LengthEncoding
		digits, err := readLengthPrefix(r, fd.LengthType, prefixEnc)
		if err != nil {
			return Value{}, ferr.Field(fd.ID, err)
		}
		n = digits
		if n > fd.LengthType.MaxLen() {
			return Value{}, ferr.Field(fd.ID, fmt.Errorf("length %d exceeds %v capacity %d", n, fd.LengthType, fd.LengthType.MaxLen()))
		}
	}

	enc := fd.Encoding
	dataLen := n
	if enc == EncodingBCD || enc == EncodingPackedDecimal {
		dataLen = (n + 1) / 2
	}
	raw, err := r.take(dataLen)
	if err != nil {
		return Value{}, ferr.Field(fd.ID, err)
	}
	s, err := decodeField(raw, fd.DataType, enc)
	if err != nil {
		return Value{}, ferr.Field(fd.ID, err)
	}
	if (enc == EncodingBCD || enc == EncodingPackedDecimal) && len(s) > n {
		s = s[len(s)-n:]
	}
	return Value{Scalar: s, Bytes: raw}, nil
}

func decodeComposite(r *reader, fd FieldDescriptor) (Value, error) {
	children := make(map[string]Value, len(fd.Children))
	for _, child := range fd.Children {
		v, err := decodeOneField(r, child)
		if err != nil {
			return Value{}, err
		}
		children[child.ID] = v
	}
	return Value{Composite: children}, nil
}

func readLengthPrefix(r *reader, lt LengthType, enc Encoding) (int, error) {
	digits := lt.PrefixDigits()
	switch enc {
	case EncodingBCD:
		raw, err := r.take((digits + 1) / 2)
		if err != nil {
			return 0, err
		}
		s, err := bcdDecode(raw)
		if err != nil {
			return 0, err
		}
		if len(s) > digits {
			s = s[len(s)-digits:]
		}
		return atoi(s)
	default: // ASCII length prefix
		raw, err := r.take(digits)
		if err != nil {
			return 0, err
		}
		return atoi(string(raw))
	}
}

func atoi(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit length prefix %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// Encode assembles a Message into wire bytes per schema. When the
// schema's header declares IncludeLength, the result is prefixed with a
// BCD length covering everything that follows the prefix itself (header
// fields, MTI, bitmaps, data fields, trailer) — that count is what a
// stream reader uses to split a socket into discrete messages.
func (c *Codec) Encode(msg *Message, schema *MessageSchema) ([]byte, error) {
	var out []byte

	if schema.Header != nil {
		for _, hf := range schema.Header.Fields {
			b, err := encodeOneField(msg.Fields[hf.ID], hf.FieldDescriptor)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	}

	mtiBytes, err := bcdEncode(msg.MTI, 4, LengthFixed)
	if err != nil {
		return nil, ferr.Field("MTI", err)
	}
	out = append(out, mtiBytes...)

	bmp, err := BitmapFromFields(presentFieldNumbers(msg, schema))
	if err != nil {
		return nil, err
	}
	out = append(out, bmp.Bytes()...)

	for _, fieldNum := range bmp.Fields() {
		id := fmt.Sprintf("%d", fieldNum)
		fd, ok := schema.Field(id)
		if !ok {
			return nil, ferr.Field(id, fmt.Errorf("field %s present but not defined in schema %s", id, schema.Name))
		}
		b, err := encodeOneField(msg.Fields[id], *fd)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}

	if schema.Trailer != nil {
		for _, tf := range schema.Trailer.Fields {
			b, err := encodeOneField(msg.Fields[tf.ID], tf.FieldDescriptor)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
	}

	if schema.Header != nil && schema.Header.IncludeLength {
		lenDigits := fmt.Sprintf("%0*d", schema.Header.LengthBytes*2, len(out))
		lenBytes, err := bcdEncode(lenDigits, schema.Header.LengthBytes*2, LengthFixed)
		if err != nil {
			return nil, err
		}
		out = append(lenBytes, out...)
	}

	return out, nil
}

func presentFieldNumbers(msg *Message, schema *MessageSchema) []int {
	var nums []int
	for id := range msg.Fields {
		if n, ok := fieldNumber(id); ok {
			if _, defined := schema.Field(id); defined {
				nums = append(nums, n)
			}
		}
	}
	sort.Ints(nums)
	return nums
}

func encodeOneField(v Value, fd FieldDescriptor) ([]byte, error) {
	if fd.DataType == TypeComposite {
		var out []byte
		for _, child := range fd.Children {
			cv := v.Composite[child.ID]
			b, err := encodeOneField(cv, child)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	}

	value := v.Scalar
	if value == "" && fd.Default != "" {
		value = fd.Default
	}
	if fd.Required && value == "" {
		return nil, ferr.Field(fd.ID, fmt.Errorf("required field %s is empty", fd.ID))
	}

	enc := fd.Encoding
	dataLen := len(value)
	if enc == EncodingBCD || enc == EncodingPackedDecimal {
		dataLen = len(value)
	}

	if fd.LengthType == LengthFixed {
		body, err := encodeField(value, fd.DataType, fd.Length, fd.LengthType, enc)
		if err != nil {
			return nil, ferr.Field(fd.ID, err)
		}
		return body, nil
	}

	if dataLen > fd.LengthType.MaxLen() {
		return nil, ferr.Field(fd.ID, fmt.Errorf("value length %d exceeds %v capacity %d", dataLen, fd.LengthType, fd.LengthType.MaxLen()))
	}

	prefix, err := encodeLengthPrefix(dataLen, fd.LengthType, fd.LengthEncoding)
	if err != nil {
		return nil, ferr.Field(fd.ID, err)
	}
	body, err := encodeField(value, fd.DataType, fd.Length, fd.LengthType, enc)
	if err != nil {
		return nil, ferr.Field(fd.ID, err)
	}
	return append(prefix, body...), nil
}

func encodeLengthPrefix(n int, lt LengthType, enc Encoding) ([]byte, error) {
	digits := lt.PrefixDigits()
	s := fmt.Sprintf("%0*d", digits, n)
	switch enc {
	case EncodingBCD:
		return bcdEncode(s, digits, LengthFixed)
	default:
		return []byte(s), nil
	}
}
