// Package onnx writes fitted tree ensembles as ONNX TreeEnsembleClassifier
// graphs and re-executes written artifacts for round-trip verification. The
// protobuf wire format is encoded and decoded directly; only the message
// subset a tree classifier graph needs is modeled.
package onnx

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Tensor element types from the ONNX specification.
const (
	TensorFloat int32 = 1
	TensorInt64 int32 = 7
)

// AttributeType mirrors ONNX AttributeProto.AttributeType.
type AttributeType int32

const (
	AttrFloat   AttributeType = 1
	AttrInt     AttributeType = 2
	AttrString  AttributeType = 3
	AttrFloats  AttributeType = 6
	AttrInts    AttributeType = 7
	AttrStrings AttributeType = 8
)

// Attribute is a named operator parameter.
type Attribute struct {
	Name    string
	Type    AttributeType
	F       float32
	I       int64
	S       []byte
	Floats  []float32
	Ints    []int64
	Strings [][]byte
}

// NodeProto is one operator invocation in a graph.
type NodeProto struct {
	Inputs     []string
	Outputs    []string
	Name       string
	OpType     string
	Domain     string
	Attributes []Attribute
}

// Dim is one tensor dimension: a fixed Value or a symbolic Param.
type Dim struct {
	Value int64
	Param string
}

// TensorType describes a tensor's element type and shape.
type TensorType struct {
	ElemType int32
	Dims     []Dim
}

// ValueInfo names and types a graph input or output.
type ValueInfo struct {
	Name string
	Type TensorType
}

// Graph holds the operator nodes and the graph I/O signature.
type Graph struct {
	Nodes   []NodeProto
	Name    string
	Inputs  []ValueInfo
	Outputs []ValueInfo
}

// OperatorSet pins an operator domain to a version.
type OperatorSet struct {
	Domain  string
	Version int64
}

// Model is the top-level ONNX model.
type Model struct {
	IRVersion       int64
	OpsetImports    []OperatorSet
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	DocString       string
	Graph           Graph
}

// Marshal encodes the model in protobuf wire format.
func (m *Model) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.IRVersion))
	if m.ProducerName != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.ProducerName)
	}
	if m.ProducerVersion != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.ProducerVersion)
	}
	if m.Domain != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, m.Domain)
	}
	if m.ModelVersion != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ModelVersion))
	}
	if m.DocString != "" {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendString(b, m.DocString)
	}
	b = protowire.AppendTag(b, 7, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalGraph(&m.Graph))
	for _, op := range m.OpsetImports {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalOperatorSet(op))
	}
	return b
}

func marshalOperatorSet(op OperatorSet) []byte {
	var b []byte
	if op.Domain != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, op.Domain)
	}
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(op.Version))
	return b
}

func marshalGraph(g *Graph) []byte {
	var b []byte
	for i := range g.Nodes {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalNode(&g.Nodes[i]))
	}
	if g.Name != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, g.Name)
	}
	for _, v := range g.Inputs {
		b = protowire.AppendTag(b, 11, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValueInfo(v))
	}
	for _, v := range g.Outputs {
		b = protowire.AppendTag(b, 12, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValueInfo(v))
	}
	return b
}

func marshalNode(n *NodeProto) []byte {
	var b []byte
	for _, in := range n.Inputs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, in)
	}
	for _, out := range n.Outputs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, out)
	}
	if n.Name != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, n.Name)
	}
	if n.OpType != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, n.OpType)
	}
	for i := range n.Attributes {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalAttribute(&n.Attributes[i]))
	}
	if n.Domain != "" {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendString(b, n.Domain)
	}
	return b
}

func marshalAttribute(a *Attribute) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, a.Name)

	switch a.Type {
	case AttrFloat:
		b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(a.F))
	case AttrInt:
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(a.I))
	case AttrString:
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, a.S)
	case AttrFloats:
		var packed []byte
		for _, f := range a.Floats {
			packed = protowire.AppendFixed32(packed, math.Float32bits(f))
		}
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	case AttrInts:
		var packed []byte
		for _, v := range a.Ints {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	case AttrStrings:
		for _, s := range a.Strings {
			b = protowire.AppendTag(b, 9, protowire.BytesType)
			b = protowire.AppendBytes(b, s)
		}
	}

	b = protowire.AppendTag(b, 20, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Type))
	return b
}

func marshalValueInfo(v ValueInfo) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, v.Name)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalTypeProto(v.Type))
	return b
}

func marshalTypeProto(t TensorType) []byte {
	var tensor []byte
	tensor = protowire.AppendTag(tensor, 1, protowire.VarintType)
	tensor = protowire.AppendVarint(tensor, uint64(t.ElemType))

	var shape []byte
	for _, d := range t.Dims {
		var dim []byte
		if d.Param != "" {
			dim = protowire.AppendTag(dim, 2, protowire.BytesType)
			dim = protowire.AppendString(dim, d.Param)
		} else {
			dim = protowire.AppendTag(dim, 1, protowire.VarintType)
			dim = protowire.AppendVarint(dim, uint64(d.Value))
		}
		shape = protowire.AppendTag(shape, 1, protowire.BytesType)
		shape = protowire.AppendBytes(shape, dim)
	}
	tensor = protowire.AppendTag(tensor, 2, protowire.BytesType)
	tensor = protowire.AppendBytes(tensor, shape)

	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, tensor)
	return b
}

// wireScanner walks one message's fields, remembering the first decode
// error.
type wireScanner struct {
	buf []byte
	err error
}

func (s *wireScanner) next() (protowire.Number, protowire.Type, bool) {
	if s.err != nil || len(s.buf) == 0 {
		return 0, 0, false
	}
	num, typ, n := protowire.ConsumeTag(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return 0, 0, false
	}
	s.buf = s.buf[n:]
	return num, typ, true
}

func (s *wireScanner) varint() uint64 {
	if s.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return 0
	}
	s.buf = s.buf[n:]
	return v
}

func (s *wireScanner) fixed32() uint32 {
	if s.err != nil {
		return 0
	}
	v, n := protowire.ConsumeFixed32(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return 0
	}
	s.buf = s.buf[n:]
	return v
}

func (s *wireScanner) bytes() []byte {
	if s.err != nil {
		return nil
	}
	v, n := protowire.ConsumeBytes(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return nil
	}
	s.buf = s.buf[n:]
	return v
}

func (s *wireScanner) skip(num protowire.Number, typ protowire.Type) {
	if s.err != nil {
		return
	}
	n := protowire.ConsumeFieldValue(num, typ, s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return
	}
	s.buf = s.buf[n:]
}

// ParseModel decodes an ONNX model from protobuf wire bytes.
func ParseModel(data []byte) (*Model, error) {
	m := &Model{}
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			m.IRVersion = int64(s.varint())
		case 2:
			m.ProducerName = string(s.bytes())
		case 3:
			m.ProducerVersion = string(s.bytes())
		case 4:
			m.Domain = string(s.bytes())
		case 5:
			m.ModelVersion = int64(s.varint())
		case 6:
			m.DocString = string(s.bytes())
		case 7:
			g, err := parseGraph(s.bytes())
			if err != nil {
				return nil, err
			}
			m.Graph = *g
		case 8:
			op, err := parseOperatorSet(s.bytes())
			if err != nil {
				return nil, err
			}
			m.OpsetImports = append(m.OpsetImports, op)
		default:
			s.skip(num, typ)
		}
	}
	if s.err != nil {
		return nil, fmt.Errorf("malformed model: %w", s.err)
	}
	return m, nil
}

func parseOperatorSet(data []byte) (OperatorSet, error) {
	var op OperatorSet
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			op.Domain = string(s.bytes())
		case 2:
			op.Version = int64(s.varint())
		default:
			s.skip(num, typ)
		}
	}
	if s.err != nil {
		return op, fmt.Errorf("malformed opset import: %w", s.err)
	}
	return op, nil
}

func parseGraph(data []byte) (*Graph, error) {
	g := &Graph{}
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			n, err := parseNode(s.bytes())
			if err != nil {
				return nil, err
			}
			g.Nodes = append(g.Nodes, *n)
		case 2:
			g.Name = string(s.bytes())
		case 11:
			v, err := parseValueInfo(s.bytes())
			if err != nil {
				return nil, err
			}
			g.Inputs = append(g.Inputs, v)
		case 12:
			v, err := parseValueInfo(s.bytes())
			if err != nil {
				return nil, err
			}
			g.Outputs = append(g.Outputs, v)
		default:
			s.skip(num, typ)
		}
	}
	if s.err != nil {
		return nil, fmt.Errorf("malformed graph: %w", s.err)
	}
	return g, nil
}

func parseNode(data []byte) (*NodeProto, error) {
	n := &NodeProto{}
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			n.Inputs = append(n.Inputs, string(s.bytes()))
		case 2:
			n.Outputs = append(n.Outputs, string(s.bytes()))
		case 3:
			n.Name = string(s.bytes())
		case 4:
			n.OpType = string(s.bytes())
		case 5:
			a, err := parseAttribute(s.bytes())
			if err != nil {
				return nil, err
			}
			n.Attributes = append(n.Attributes, *a)
		case 7:
			n.Domain = string(s.bytes())
		default:
			s.skip(num, typ)
		}
	}
	if s.err != nil {
		return nil, fmt.Errorf("malformed node: %w", s.err)
	}
	return n, nil
}

func parseValueInfo(data []byte) (ValueInfo, error) {
	var v ValueInfo
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			v.Name = string(s.bytes())
		case 2:
			t, err := parseTypeProto(s.bytes())
			if err != nil {
				return v, err
			}
			v.Type = t
		default:
			s.skip(num, typ)
		}
	}
	if s.err != nil {
		return v, fmt.Errorf("malformed value info: %w", s.err)
	}
	return v, nil
}

func parseTypeProto(data []byte) (TensorType, error) {
	var t TensorType
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		if num != 1 {
			s.skip(num, typ)
			continue
		}
		tensor := &wireScanner{buf: s.bytes()}
		for {
			tnum, ttyp, tok := tensor.next()
			if !tok {
				break
			}
			switch tnum {
			case 1:
				t.ElemType = int32(tensor.varint())
			case 2:
				dims, err := parseShape(tensor.bytes())
				if err != nil {
					return t, err
				}
				t.Dims = dims
			default:
				tensor.skip(tnum, ttyp)
			}
		}
		if tensor.err != nil {
			return t, fmt.Errorf("malformed tensor type: %w", tensor.err)
		}
	}
	if s.err != nil {
		return t, fmt.Errorf("malformed type: %w", s.err)
	}
	return t, nil
}

func parseShape(data []byte) ([]Dim, error) {
	var dims []Dim
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		if num != 1 {
			s.skip(num, typ)
			continue
		}
		var d Dim
		ds := &wireScanner{buf: s.bytes()}
		for {
			dnum, dtyp, dok := ds.next()
			if !dok {
				break
			}
			switch dnum {
			case 1:
				d.Value = int64(ds.varint())
			case 2:
				d.Param = string(ds.bytes())
			default:
				ds.skip(dnum, dtyp)
			}
		}
		if ds.err != nil {
			return nil, fmt.Errorf("malformed dimension: %w", ds.err)
		}
		dims = append(dims, d)
	}
	if s.err != nil {
		return nil, fmt.Errorf("malformed shape: %w", s.err)
	}
	return dims, nil
}

func parseAttribute(data []byte) (*Attribute, error) {
	a := &Attribute{}
	s := &wireScanner{buf: data}
	for {
		num, typ, ok := s.next()
		if !ok {
			break
		}
		switch num {
		case 1:
			a.Name = string(s.bytes())
		case 2:
			a.F = math.Float32frombits(s.fixed32())
		case 3:
			a.I = int64(s.varint())
		case 4:
			a.S = s.bytes()
		case 7:
			// Repeated scalars arrive packed or one field per entry;
			// accept both wire forms like any protobuf parser.
			if typ == protowire.Fixed32Type {
				a.Floats = append(a.Floats, math.Float32frombits(s.fixed32()))
				break
			}
			packed := &wireScanner{buf: s.bytes()}
			for len(packed.buf) > 0 && packed.err == nil {
				a.Floats = append(a.Floats, math.Float32frombits(packed.fixed32()))
			}
			if packed.err != nil {
				return nil, fmt.Errorf("malformed floats attribute: %w", packed.err)
			}
		case 8:
			if typ == protowire.VarintType {
				a.Ints = append(a.Ints, int64(s.varint()))
				break
			}
			packed := &wireScanner{buf: s.bytes()}
			for len(packed.buf) > 0 && packed.err == nil {
				a.Ints = append(a.Ints, int64(packed.varint()))
			}
			if packed.err != nil {
				return nil, fmt.Errorf("malformed ints attribute: %w", packed.err)
			}
		case 9:
			a.Strings = append(a.Strings, s.bytes())
		case 20:
			a.Type = AttributeType(s.varint())
		default:
			s.skip(num, typ)
		}
	}
	if s.err != nil {
		return nil, fmt.Errorf("malformed attribute: %w", s.err)
	}
	return a, nil
}
