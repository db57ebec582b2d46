package exr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mrjoshuak/go-depthexr/internal/xdr"
)

// AttributeType identifies the type of an attribute on the wire.
type AttributeType string

// Supported attribute types
const (
	AttrTypeString   AttributeType = "string"
	AttrTypeInt      AttributeType = "int"
	AttrTypeBox2i    AttributeType = "box2i"
	AttrTypeChannels AttributeType = "channels"
)

// AttributeValue is the value half of an attribute record. The concrete
// types are StringValue, IntValue, Box2i and ChannelList.
type AttributeValue interface {
	// Type returns the wire tag of the value.
	Type() AttributeType
	// Size returns the encoded length of the value in bytes.
	Size() int

	encode(w *xdr.BufferWriter)
	validate() error
}

// Attribute is a named, typed, length-prefixed header record.
type Attribute struct {
	Name  string
	Value AttributeValue
}

// Type returns the wire tag of the attribute's value.
func (a *Attribute) Type() AttributeType {
	if a.Value == nil {
		return ""
	}
	return a.Value.Type()
}

// StringValue is a null-terminated string attribute value.
type StringValue string

func (StringValue) Type() AttributeType { return AttrTypeString }
func (s StringValue) Size() int         { return len(s) + 1 }

func (s StringValue) encode(w *xdr.BufferWriter) { w.WriteString(string(s)) }

func (s StringValue) validate() error {
	if strings.IndexByte(string(s), 0) >= 0 {
		return errors.New("string value contains null byte")
	}
	return nil
}

// IntValue is a 32-bit signed integer attribute value.
type IntValue int32

func (IntValue) Type() AttributeType { return AttrTypeInt }
func (IntValue) Size() int           { return 4 }

func (v IntValue) encode(w *xdr.BufferWriter) { w.WriteInt32(int32(v)) }
func (IntValue) validate() error              { return nil }

func (Box2i) Type() AttributeType { return AttrTypeBox2i }
func (Box2i) Size() int           { return 16 }

func (b Box2i) encode(w *xdr.BufferWriter) { WriteBox2i(w, b) }

func (b Box2i) validate() error {
	if b.IsEmpty() {
		return fmt.Errorf("box %v has min greater than max", b)
	}
	return nil
}

// ChannelList is an ordered list of channel records. On the wire each
// channel takes ChannelRecordSize bytes and the list ends with one zero
// byte.
type ChannelList []Channel

func (ChannelList) Type() AttributeType { return AttrTypeChannels }
func (cl ChannelList) Size() int        { return len(cl)*ChannelRecordSize + 1 }

func (cl ChannelList) encode(w *xdr.BufferWriter) {
	for _, c := range cl {
		writeChannel(w, c)
	}
	w.WriteByte(0)
}

func (cl ChannelList) validate() error {
	seen := make(map[string]bool, len(cl))
	for _, c := range cl {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate channel %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Find returns the channel with the given name.
func (cl ChannelList) Find(name string) (Channel, bool) {
	for _, c := range cl {
		if c.Name == name {
			return c, true
		}
	}
	return Channel{}, false
}

// attributeDecoders holds one decoder per wire tag. Each decoder receives a
// reader limited to exactly the declared value length.
var attributeDecoders = map[AttributeType]func(r *xdr.Reader) (AttributeValue, error){
	AttrTypeString:   decodeString,
	AttrTypeInt:      decodeInt,
	AttrTypeBox2i:    decodeBox2i,
	AttrTypeChannels: decodeChannelList,
}

func decodeString(r *xdr.Reader) (AttributeValue, error) {
	n := r.Len()
	if n == 0 {
		return nil, errors.New("empty string value")
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	if b[n-1] != 0 {
		return nil, errors.New("string value is not null-terminated")
	}
	s := StringValue(b[:n-1])
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeInt(r *xdr.Reader) (AttributeValue, error) {
	v, err := r.ReadInt32()
	return IntValue(v), err
}

func decodeBox2i(r *xdr.Reader) (AttributeValue, error) {
	b, err := ReadBox2i(r)
	if err != nil {
		return nil, err
	}
	return b, b.validate()
}

func decodeChannelList(r *xdr.Reader) (AttributeValue, error) {
	n := r.Len()
	if n < 1 || (n-1)%ChannelRecordSize != 0 {
		return nil, fmt.Errorf("channel list length %d is not %d*n+1", n, ChannelRecordSize)
	}
	cl := make(ChannelList, 0, (n-1)/ChannelRecordSize)
	for r.Len() > 1 {
		c, err := readChannel(r)
		if err != nil {
			return nil, err
		}
		cl = append(cl, c)
	}
	end, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if end != 0 {
		return nil, errors.New("channel list is not terminated")
	}
	if err := cl.validate(); err != nil {
		return nil, err
	}
	return cl, nil
}

// ReadAttribute reads a single attribute record.
// It returns nil when the attribute terminator (an empty name) is reached.
func ReadAttribute(r *xdr.Reader) (*Attribute, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, truncated(err, ErrTruncatedData, "attribute name")
	}
	if name == "" {
		return nil, nil
	}

	typeName, err := r.ReadString()
	if err != nil {
		return nil, truncated(err, ErrTruncatedData, "type of attribute "+name)
	}

	size, err := r.ReadInt32()
	if err != nil {
		return nil, truncated(err, ErrTruncatedData, "size of attribute "+name)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: %s has negative size %d", ErrMalformedAttribute, name, size)
	}

	decode, ok := attributeDecoders[AttributeType(typeName)]
	if !ok {
		return nil, fmt.Errorf("%w: %s has unknown type %q", ErrMalformedAttribute, name, typeName)
	}

	data, err := r.ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: %s declares %d bytes, %d available", ErrTruncatedData, name, size, r.Len())
	}

	vr := xdr.NewReader(data)
	value, err := decode(vr)
	if err != nil {
		if errors.Is(err, xdr.ErrShortBuffer) {
			return nil, fmt.Errorf("%w: %s value longer than declared size %d", ErrMalformedAttribute, name, size)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAttribute, name, err)
	}
	if vr.Len() != 0 {
		return nil, fmt.Errorf("%w: %s declares %d bytes, value used %d", ErrMalformedAttribute, name, size, vr.Pos())
	}

	return &Attribute{Name: name, Value: value}, nil
}

// WriteAttribute appends an attribute record to the writer:
// name, type tag, int32 value length, value bytes.
func WriteAttribute(w *xdr.BufferWriter, attr *Attribute) error {
	if attr == nil || attr.Value == nil {
		return fmt.Errorf("%w: nil attribute value", ErrMalformedAttribute)
	}
	if attr.Name == "" || strings.IndexByte(attr.Name, 0) >= 0 {
		return fmt.Errorf("%w: invalid attribute name %q", ErrMalformedAttribute, attr.Name)
	}
	if err := attr.Value.validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedAttribute, attr.Name, err)
	}
	size := attr.Value.Size()
	if size > math.MaxInt32 {
		return fmt.Errorf("%w: %s value is %d bytes", ErrMalformedAttribute, attr.Name, size)
	}

	w.WriteString(attr.Name)
	w.WriteString(string(attr.Value.Type()))
	w.WriteInt32(int32(size))
	attr.Value.encode(w)

	if err := w.Err(); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrBufferOverflow, attr.Name, err)
	}
	return nil
}

// EncodeString appends a string attribute.
func EncodeString(w *xdr.BufferWriter, name, s string) error {
	return WriteAttribute(w, &Attribute{Name: name, Value: StringValue(s)})
}

// EncodeInt appends an int attribute.
func EncodeInt(w *xdr.BufferWriter, name string, v int32) error {
	return WriteAttribute(w, &Attribute{Name: name, Value: IntValue(v)})
}

// EncodeBox2i appends a box2i attribute.
func EncodeBox2i(w *xdr.BufferWriter, name string, b Box2i) error {
	return WriteAttribute(w, &Attribute{Name: name, Value: b})
}

// EncodeChannelList appends a channel list attribute.
func EncodeChannelList(w *xdr.BufferWriter, name string, channels []Channel) error {
	return WriteAttribute(w, &Attribute{Name: name, Value: ChannelList(channels)})
}
