package wire

// DataType enumerates the field-level data types a FieldDescriptor may
// declare.
type DataType int

const (
	TypeAlphanumeric DataType = iota
	TypeNumeric
	TypeBinary
	TypeBCD
	TypeHex
	TypeTrack2
	TypeComposite
)

// LengthType enumerates how a field's length is determined on the wire.
type LengthType int

const (
	LengthFixed LengthType = iota
	LengthLVAR             // 1-digit length prefix, max 9
	LengthLLVAR            // 2-digit length prefix, max 99
	LengthLLLVAR           // 3-digit length prefix, max 999
	LengthLLLLVAR          // 4-digit length prefix, max 9999
)

// MaxLen returns the maximum data length representable by this
// length-type's prefix, or -1 for LengthFixed (capacity is the
// descriptor's own Length).
func (lt LengthType) MaxLen() int {
	switch lt {
	case LengthLVAR:
		return 9
	case LengthLLVAR:
		return 99
	case LengthLLLVAR:
		return 999
	case LengthLLLLVAR:
		return 9999
	default:
		return -1
	}
}

// PrefixDigits returns the number of length-prefix digits for variable
// length types, or 0 for LengthFixed.
func (lt LengthType) PrefixDigits() int {
	switch lt {
	case LengthLVAR:
		return 1
	case LengthLLVAR:
		return 2
	case LengthLLLVAR:
		return 3
	case LengthLLLLVAR:
		return 4
	default:
		return 0
	}
}

// Encoding enumerates how field bytes are represented on the wire.
type Encoding int

const (
	EncodingASCII Encoding = iota
	EncodingEBCDIC
	EncodingBCD
	EncodingHex
	EncodingBinary
	EncodingPackedDecimal
)

// FieldDescriptor describes one field (or, for a composite, one
// sub-field) of a MessageSchema.
type FieldDescriptor struct {
	ID             string // stable id; for ISO-8583-style schemas this is the decimal field number as a string
	Name           string
	DataType       DataType
	Length         int // for LengthFixed: exact length; for variable: capacity bound (informational)
	LengthType     LengthType
	Encoding       Encoding
	LengthEncoding Encoding // encoding of the length prefix itself for variable fields (BCD or ASCII)
	Children       []FieldDescriptor // non-nil for DataType == TypeComposite
	Default        string
	Required       bool
}

// HeaderField describes one field of a schema's optional message header.
type HeaderField struct {
	FieldDescriptor
}

// Header describes the optional leading framing of a message, e.g. the
// 2-byte BCD length prefix of the FISC wire protocol.
type Header struct {
	IncludeLength bool
	LengthBytes   int
	Fields        []HeaderField
}

// Trailer describes optional fixed trailing fields after all bitmap
// fields have been written.
type Trailer struct {
	Fields []HeaderField
}

// MessageSchema is an immutable description of a wire format.
type MessageSchema struct {
	Name            string
	Version         string
	Header          *Header
	Trailer         *Trailer
	Fields          []FieldDescriptor // ordered by field number for ISO-8583-style schemas
	DefaultEncoding Encoding

	byID map[string]*FieldDescriptor
}

// Build indexes Fields by ID. Call once after populating Fields, or use
// NewMessageSchema which calls it for you.
func (s *MessageSchema) Build() {
	s.byID = make(map[string]*FieldDescriptor, len(s.Fields))
	for i := range s.Fields {
		s.byID[s.Fields[i].ID] = &s.Fields[i]
	}
}

// Field looks up a field descriptor by id.
func (s *MessageSchema) Field(id string) (*FieldDescriptor, bool) {
	if s.byID == nil {
		s.Build()
	}
	fd, ok := s.byID[id]
	return fd, ok
}

// NewMessageSchema constructs a schema and indexes its fields.
func NewMessageSchema(name, version string, fields []FieldDescriptor, defaultEncoding Encoding) *MessageSchema {
	s := &MessageSchema{Name: name, Version: version, Fields: fields, DefaultEncoding: defaultEncoding}
	s.Build()
	return s
}

// Registry looks schemas up by name+version, the generalization a gateway
// fronting multiple MTI families (0100/0200/0400/0800) needs at runtime.
type Registry struct {
	schemas map[string]*MessageSchema
}

// NewRegistry returns an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*MessageSchema)}
}

// Register adds a schema under "name@version". A later Register with the
// same key overwrites the earlier entry.
func (r *Registry) Register(s *MessageSchema) {
	r.schemas[key(s.Name, s.Version)] = s
}

// Lookup returns the schema for name+version, or false if unregistered.
func (r *Registry) Lookup(name, version string) (*MessageSchema, bool) {
	s, ok := r.schemas[key(name, version)]
	return s, ok
}

func key(name, version string) string { return name + "@" + version }
