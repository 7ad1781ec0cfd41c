package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

var (
	binarySignature = []byte{'<', 'r', 'o', 'b', 'l', 'o', 'x', '!', 0x89, 0xff, 0x0d, 0x0a, 0x1a, 0x0a}
	zstdMagic       = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

const (
	chunkMeta   = "META"
	chunkShared = "SSTR"
	chunkInst   = "INST"
	chunkProp   = "PROP"
	chunkParent = "PRNT"
	chunkEnd    = "END\x00"
)

const (
	binTypeString  = 0x01
	binTypeBool    = 0x02
	binTypeInt32   = 0x03
	binTypeFloat32 = 0x04
	binTypeFloat64 = 0x05
	binTypeEnum    = 0x12
	binTypeInt64   = 0x1b
)

// decodeBinary parses an rbxm/rbxl document. Property chunks carrying
// value types outside the model are skipped with a warning; the chunk
// framing keeps the rest of the file readable.
func decodeBinary(r io.Reader) (*m.Tree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &m.CodecError{Op: "decode", Format: "binary", Err: err}
	}

	tree, err := parseBinary(data)
	if err != nil {
		return nil, &m.CodecError{Op: "decode", Format: "binary", Err: err}
	}

	return tree, nil
}

func parseBinary(data []byte) (*m.Tree, error) {
	if !bytes.HasPrefix(data, binarySignature) {
		return nil, fmt.Errorf("missing file signature")
	}

	r := &byteReader{data: data, off: len(binarySignature)}

	version, err := r.u16()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	if version != 0 {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}

	// Class and instance counts plus eight reserved bytes.
	if _, err := r.bytes(16); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	d := &binDecoder{
		tree:    m.NewTree(),
		classes: map[uint32][]m.Ref{},
		refs:    map[int32]m.Ref{},
	}

	for {
		name, payload, err := readChunk(r)
		if err != nil {
			return nil, err
		}

		if name == chunkEnd {
			break
		}

		switch name {
		case chunkInst:
			err = d.readInstChunk(payload)
		case chunkProp:
			err = d.readPropChunk(payload)
		case chunkParent:
			err = d.readParentChunk(payload)
		case chunkMeta, chunkShared:
			// Metadata and shared strings carry nothing the model tracks.
		default:
			slog.Warn("skipping unknown chunk in binary decode", "chunk", name)
		}

		if err != nil {
			return nil, err
		}
	}

	return d.tree, nil
}

func readChunk(r *byteReader) (string, []byte, error) {
	name, err := r.bytes(4)
	if err != nil {
		return "", nil, fmt.Errorf("chunk header: %w", err)
	}

	compressedLen, err := r.u32()
	if err != nil {
		return "", nil, fmt.Errorf("chunk header: %w", err)
	}

	uncompressedLen, err := r.u32()
	if err != nil {
		return "", nil, fmt.Errorf("chunk header: %w", err)
	}

	if _, err := r.bytes(4); err != nil {
		return "", nil, fmt.Errorf("chunk header: %w", err)
	}

	if compressedLen == 0 {
		payload, err := r.bytes(int(uncompressedLen))
		if err != nil {
			return "", nil, fmt.Errorf("chunk payload: %w", err)
		}

		return string(name), payload, nil
	}

	compressed, err := r.bytes(int(compressedLen))
	if err != nil {
		return "", nil, fmt.Errorf("chunk payload: %w", err)
	}

	payload, err := decompressChunk(compressed, int(uncompressedLen))
	if err != nil {
		return "", nil, fmt.Errorf("chunk payload: %w", err)
	}

	return string(name), payload, nil
}

func decompressChunk(compressed []byte, uncompressedLen int) ([]byte, error) {
	if bytes.HasPrefix(compressed, zstdMagic) {
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer zr.Close()

		return zr.DecodeAll(compressed, make([]byte, 0, uncompressedLen))
	}

	payload := make([]byte, uncompressedLen)

	n, err := lz4.UncompressBlock(compressed, payload)
	if err != nil {
		return nil, err
	}

	if n != uncompressedLen {
		return nil, fmt.Errorf("chunk inflated to %d bytes, header says %d", n, uncompressedLen)
	}

	return payload, nil
}

type binDecoder struct {
	tree    *m.Tree
	classes map[uint32][]m.Ref
	refs    map[int32]m.Ref
}

func binRef(id int32) m.Ref {
	return m.Ref(fmt.Sprintf("RBX%08X", uint32(id)))
}

func (d *binDecoder) readInstChunk(payload []byte) error {
	r := &byteReader{data: payload}

	classID, err := r.u32()
	if err != nil {
		return fmt.Errorf("INST chunk: %w", err)
	}

	className, err := r.lenString()
	if err != nil {
		return fmt.Errorf("INST chunk: %w", err)
	}

	format, err := r.u8()
	if err != nil {
		return fmt.Errorf("INST chunk: %w", err)
	}

	count, err := r.u32()
	if err != nil {
		return fmt.Errorf("INST chunk: %w", err)
	}

	ids, err := readReferentArray(r, int(count))
	if err != nil {
		return fmt.Errorf("INST chunk: %w", err)
	}

	if format == 1 {
		// Service markers, one byte per instance.
		if _, err := r.bytes(int(count)); err != nil {
			return fmt.Errorf("INST chunk: %w", err)
		}
	}

	refs := make([]m.Ref, 0, count)

	for _, id := range ids {
		ref := binRef(id)

		inst := &m.Instance{Ref: ref, ClassName: className, Properties: map[string]m.Value{}}
		if err := d.tree.AddInstance(inst); err != nil {
			return fmt.Errorf("INST chunk: %w", err)
		}

		d.refs[id] = ref
		refs = append(refs, ref)
	}

	d.classes[classID] = refs

	return nil
}

func (d *binDecoder) readPropChunk(payload []byte) error {
	r := &byteReader{data: payload}

	classID, err := r.u32()
	if err != nil {
		return fmt.Errorf("PROP chunk: %w", err)
	}

	name, err := r.lenString()
	if err != nil {
		return fmt.Errorf("PROP chunk: %w", err)
	}

	typeID, err := r.u8()
	if err != nil {
		return fmt.Errorf("PROP chunk: %w", err)
	}

	refs, ok := d.classes[classID]
	if !ok {
		return fmt.Errorf("PROP chunk: property %q references unknown class %d", name, classID)
	}

	values, err := readPropValues(r, typeID, name, len(refs))
	if err != nil {
		return fmt.Errorf("PROP chunk: property %q: %w", name, err)
	}

	if values == nil {
		slog.Warn("skipping property with unsupported binary type", "property", name, "type", typeID)
		return nil
	}

	for i, ref := range refs {
		inst := d.tree.Get(ref)

		if name == "Name" && values[i].Kind == m.KindString {
			inst.Name = values[i].Str
			continue
		}

		inst.Properties[name] = values[i]
	}

	return nil
}

// readPropValues returns one value per instance, or nil when the type is
// not modeled.
func readPropValues(r *byteReader, typeID byte, name string, count int) ([]m.Value, error) {
	values := make([]m.Value, 0, count)

	switch typeID {
	case binTypeString:
		for range count {
			s, err := r.lenString()
			if err != nil {
				return nil, err
			}

			// Script bodies stay protected so they round trip through
			// the XML encoding as CDATA.
			if name == m.SourceProperty {
				values = append(values, m.NewProtectedString(s))
			} else {
				values = append(values, m.NewString(s))
			}
		}
	case binTypeBool:
		raw, err := r.bytes(count)
		if err != nil {
			return nil, err
		}

		for _, b := range raw {
			values = append(values, m.NewBool(b != 0))
		}
	case binTypeInt32:
		words, err := readInterleavedU32(r, count)
		if err != nil {
			return nil, err
		}

		for _, w := range words {
			values = append(values, m.NewInt32(unzigzag32(w)))
		}
	case binTypeFloat32:
		words, err := readInterleavedU32(r, count)
		if err != nil {
			return nil, err
		}

		for _, w := range words {
			values = append(values, m.NewFloat32(math.Float32frombits(unrotateF32(w))))
		}
	case binTypeFloat64:
		for range count {
			raw, err := r.bytes(8)
			if err != nil {
				return nil, err
			}

			values = append(values, m.NewFloat64(math.Float64frombits(binary.LittleEndian.Uint64(raw))))
		}
	case binTypeEnum:
		words, err := readInterleavedU32(r, count)
		if err != nil {
			return nil, err
		}

		for _, w := range words {
			values = append(values, m.NewToken(w))
		}
	case binTypeInt64:
		words, err := readInterleavedU64(r, count)
		if err != nil {
			return nil, err
		}

		for _, w := range words {
			values = append(values, m.NewInt64(unzigzag64(w)))
		}
	default:
		return nil, nil
	}

	return values, nil
}

func (d *binDecoder) readParentChunk(payload []byte) error {
	r := &byteReader{data: payload}

	version, err := r.u8()
	if err != nil {
		return fmt.Errorf("PRNT chunk: %w", err)
	}

	if version != 0 {
		return fmt.Errorf("PRNT chunk: unsupported version %d", version)
	}

	count, err := r.u32()
	if err != nil {
		return fmt.Errorf("PRNT chunk: %w", err)
	}

	children, err := readReferentArray(r, int(count))
	if err != nil {
		return fmt.Errorf("PRNT chunk: %w", err)
	}

	parents, err := readReferentArray(r, int(count))
	if err != nil {
		return fmt.Errorf("PRNT chunk: %w", err)
	}

	for i, childID := range children {
		child, ok := d.refs[childID]
		if !ok {
			return fmt.Errorf("PRNT chunk: unknown child referent %d", childID)
		}

		parent := d.tree.Root()

		if parents[i] != -1 {
			parent, ok = d.refs[parents[i]]
			if !ok {
				return fmt.Errorf("PRNT chunk: unknown parent referent %d", parents[i])
			}
		}

		if err := d.tree.SetParent(child, parent); err != nil {
			return fmt.Errorf("PRNT chunk: %w", err)
		}
	}

	return nil
}

// encodeBinary writes the rbxm/rbxl form of the root subtrees.
func encodeBinary(w io.Writer, tree *m.Tree, roots []m.Ref) error {
	refs := exportSet(tree, roots)

	for _, root := range roots {
		if tree.Get(root) == nil {
			return &m.CodecError{Op: "encode", Format: "binary", Err: fmt.Errorf("unknown root reference %q", root)}
		}
	}

	ids := make(map[m.Ref]int32, len(refs))
	for i, ref := range refs {
		ids[ref] = int32(i)
	}

	classRefs := map[string][]m.Ref{}

	for _, ref := range refs {
		class := tree.Get(ref).ClassName
		classRefs[class] = append(classRefs[class], ref)
	}

	classNames := make([]string, 0, len(classRefs))
	for name := range classRefs {
		classNames = append(classNames, name)
	}

	sort.Strings(classNames)

	var buf bytes.Buffer

	buf.Write(binarySignature)
	writeU16(&buf, 0)
	writeU32(&buf, uint32(len(classNames)))
	writeU32(&buf, uint32(len(refs)))
	buf.Write(make([]byte, 8))

	writeChunk(&buf, chunkMeta, encodeMetaChunk(), true)

	for classID, name := range classNames {
		writeChunk(&buf, chunkInst, encodeInstChunk(uint32(classID), name, classRefs[name], ids), true)
	}

	for classID, name := range classNames {
		chunks, err := encodePropChunks(tree, uint32(classID), classRefs[name])
		if err != nil {
			return &m.CodecError{Op: "encode", Format: "binary", Err: err}
		}

		for _, chunk := range chunks {
			writeChunk(&buf, chunkProp, chunk, true)
		}
	}

	writeChunk(&buf, chunkParent, encodeParentChunk(tree, refs, ids), true)
	writeChunk(&buf, chunkEnd, []byte("</roblox>"), false)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return &m.CodecError{Op: "encode", Format: "binary", Err: err}
	}

	return nil
}

func encodeMetaChunk() []byte {
	var buf bytes.Buffer

	writeU32(&buf, 1)
	writeLenString(&buf, "ExplicitAutoJoints")
	writeLenString(&buf, "true")

	return buf.Bytes()
}

func encodeInstChunk(classID uint32, className string, refs []m.Ref, ids map[m.Ref]int32) []byte {
	var buf bytes.Buffer

	writeU32(&buf, classID)
	writeLenString(&buf, className)
	buf.WriteByte(0)
	writeU32(&buf, uint32(len(refs)))
	writeReferentArray(&buf, refs, ids)

	return buf.Bytes()
}

// encodePropChunks emits one chunk per property the class carries,
// instance names included. An instance missing a property that its
// siblings carry gets the zero value of the property's type.
func encodePropChunks(tree *m.Tree, classID uint32, refs []m.Ref) ([][]byte, error) {
	names := []string{"Name"}
	kinds := map[string]m.ValueKind{"Name": m.KindString}

	for _, ref := range refs {
		for name, v := range tree.Get(ref).Properties {
			if _, ok := kinds[name]; ok {
				continue
			}

			names = append(names, name)
			kinds[name] = v.Kind
		}
	}

	sort.Strings(names)

	chunks := make([][]byte, 0, len(names))

	for _, name := range names {
		chunk, err := encodePropChunk(tree, classID, name, kinds[name], refs)
		if err != nil {
			return nil, err
		}

		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

func encodePropChunk(tree *m.Tree, classID uint32, name string, kind m.ValueKind, refs []m.Ref) ([]byte, error) {
	var buf bytes.Buffer

	writeU32(&buf, classID)
	writeLenString(&buf, name)

	value := func(ref m.Ref) m.Value {
		if name == "Name" {
			return m.NewString(tree.Get(ref).Name)
		}

		return tree.Get(ref).Properties[name]
	}

	switch kind {
	case m.KindString, m.KindProtectedString, m.KindContent:
		buf.WriteByte(binTypeString)

		for _, ref := range refs {
			writeLenString(&buf, value(ref).Str)
		}
	case m.KindBinaryString:
		buf.WriteByte(binTypeString)

		for _, ref := range refs {
			raw := value(ref).Bytes
			writeU32(&buf, uint32(len(raw)))
			buf.Write(raw)
		}
	case m.KindBool:
		buf.WriteByte(binTypeBool)

		for _, ref := range refs {
			if value(ref).Bool {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
	case m.KindInt32:
		buf.WriteByte(binTypeInt32)

		words := make([]uint32, len(refs))
		for i, ref := range refs {
			words[i] = zigzag32(int32(value(ref).Int))
		}

		writeInterleavedU32(&buf, words)
	case m.KindFloat32:
		buf.WriteByte(binTypeFloat32)

		words := make([]uint32, len(refs))
		for i, ref := range refs {
			words[i] = rotateF32(math.Float32bits(float32(value(ref).Float)))
		}

		writeInterleavedU32(&buf, words)
	case m.KindFloat64:
		buf.WriteByte(binTypeFloat64)

		for _, ref := range refs {
			var raw [8]byte

			binary.LittleEndian.PutUint64(raw[:], math.Float64bits(value(ref).Float))
			buf.Write(raw[:])
		}
	case m.KindToken:
		buf.WriteByte(binTypeEnum)

		words := make([]uint32, len(refs))
		for i, ref := range refs {
			words[i] = uint32(value(ref).Int)
		}

		writeInterleavedU32(&buf, words)
	case m.KindInt64:
		buf.WriteByte(binTypeInt64)

		words := make([]uint64, len(refs))
		for i, ref := range refs {
			words[i] = zigzag64(value(ref).Int)
		}

		writeInterleavedU64(&buf, words)
	default:
		slog.Warn("skipping property with unsupported kind in binary encode", "property", name, "kind", int(kind))
		return nil, nil
	}

	return buf.Bytes(), nil
}

func encodeParentChunk(tree *m.Tree, refs []m.Ref, ids map[m.Ref]int32) []byte {
	var buf bytes.Buffer

	buf.WriteByte(0)
	writeU32(&buf, uint32(len(refs)))
	writeReferentArray(&buf, refs, ids)

	parents := make([]int32, len(refs))

	for i, ref := range refs {
		parent := tree.Get(ref).Parent

		if id, ok := ids[parent]; ok {
			parents[i] = id
		} else {
			parents[i] = -1
		}
	}

	writeReferentValues(&buf, parents)

	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, name string, payload []byte, compress bool) {
	buf.WriteString(name)

	if compress {
		bound := lz4.CompressBlockBound(len(payload))
		dst := make([]byte, bound)

		var c lz4.Compressor

		n, err := c.CompressBlock(payload, dst)
		if err == nil && n > 0 && n < len(payload) {
			writeU32(buf, uint32(n))
			writeU32(buf, uint32(len(payload)))
			buf.Write(make([]byte, 4))
			buf.Write(dst[:n])

			return
		}
	}

	writeU32(buf, 0)
	writeU32(buf, uint32(len(payload)))
	buf.Write(make([]byte, 4))
	buf.Write(payload)
}

type byteReader struct {
	data []byte
	off  int
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}

	out := r.data[r.off : r.off+n]
	r.off += n

	return out, nil
}

func (r *byteReader) u8() (byte, error) {
	raw, err := r.bytes(1)
	if err != nil {
		return 0, err
	}

	return raw[0], nil
}

func (r *byteReader) u16() (uint16, error) {
	raw, err := r.bytes(2)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(raw), nil
}

func (r *byteReader) u32() (uint32, error) {
	raw, err := r.bytes(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(raw), nil
}

func (r *byteReader) lenString() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}

	raw, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// readInterleavedU32 undoes the byte transposition used by most
// four-byte value arrays: byte b of value i lives at data[b*count+i],
// big endian.
func readInterleavedU32(r *byteReader, count int) ([]uint32, error) {
	raw, err := r.bytes(4 * count)
	if err != nil {
		return nil, err
	}

	words := make([]uint32, count)

	for i := range count {
		words[i] = uint32(raw[i])<<24 | uint32(raw[count+i])<<16 | uint32(raw[2*count+i])<<8 | uint32(raw[3*count+i])
	}

	return words, nil
}

func readInterleavedU64(r *byteReader, count int) ([]uint64, error) {
	raw, err := r.bytes(8 * count)
	if err != nil {
		return nil, err
	}

	words := make([]uint64, count)

	for i := range count {
		var w uint64
		for b := range 8 {
			w = w<<8 | uint64(raw[b*count+i])
		}

		words[i] = w
	}

	return words, nil
}

func writeInterleavedU32(buf *bytes.Buffer, words []uint32) {
	count := len(words)
	out := make([]byte, 4*count)

	for i, w := range words {
		out[i] = byte(w >> 24)
		out[count+i] = byte(w >> 16)
		out[2*count+i] = byte(w >> 8)
		out[3*count+i] = byte(w)
	}

	buf.Write(out)
}

func writeInterleavedU64(buf *bytes.Buffer, words []uint64) {
	count := len(words)
	out := make([]byte, 8*count)

	for i, w := range words {
		for b := range 8 {
			out[b*count+i] = byte(w >> (56 - 8*b))
		}
	}

	buf.Write(out)
}

// Referent arrays are zigzag encoded deltas of the running id,
// transposed like any other four-byte array.
func readReferentArray(r *byteReader, count int) ([]int32, error) {
	words, err := readInterleavedU32(r, count)
	if err != nil {
		return nil, err
	}

	ids := make([]int32, count)

	var last int32

	for i, w := range words {
		last += unzigzag32(w)
		ids[i] = last
	}

	return ids, nil
}

func writeReferentArray(buf *bytes.Buffer, refs []m.Ref, ids map[m.Ref]int32) {
	values := make([]int32, len(refs))
	for i, ref := range refs {
		values[i] = ids[ref]
	}

	writeReferentValues(buf, values)
}

func writeReferentValues(buf *bytes.Buffer, values []int32) {
	words := make([]uint32, len(values))

	var last int32

	for i, v := range values {
		words[i] = zigzag32(v - last)
		last = v
	}

	writeInterleavedU32(buf, words)
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var raw [2]byte

	binary.LittleEndian.PutUint16(raw[:], v)
	buf.Write(raw[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var raw [4]byte

	binary.LittleEndian.PutUint32(raw[:], v)
	buf.Write(raw[:])
}

func writeLenString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func zigzag32(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func unzigzag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

func zigzag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func rotateF32(bits uint32) uint32 {
	return bits<<1 | bits>>31
}

func unrotateF32(rot uint32) uint32 {
	return rot>>1 | rot<<31
}
