package model

// ValueKind discriminates the property payloads the codecs understand.
type ValueKind int

const (
	// KindString is a plain UTF-8 string property.
	KindString ValueKind = iota
	// KindProtectedString carries script source text.
	KindProtectedString
	// KindBinaryString is raw bytes (base64 in the XML encoding).
	KindBinaryString
	// KindContent is an asset reference (rbxassetid and friends).
	KindContent
	// KindBool is a boolean property.
	KindBool
	// KindInt32 is a signed 32-bit integer.
	KindInt32
	// KindInt64 is a signed 64-bit integer.
	KindInt64
	// KindFloat32 is a single-precision float.
	KindFloat32
	// KindFloat64 is a double-precision float.
	KindFloat64
	// KindToken is an enum item, stored as its unsigned ordinal.
	KindToken
	// KindRawXML preserves an XML property element this codec does not
	// model, verbatim, so encoding does not drop it.
	KindRawXML
)

// Value is a tagged union over property payloads. Exactly the field for
// Kind is meaningful; the rest stay zero.
type Value struct {
	Kind  ValueKind
	Str   string
	Bytes []byte
	Bool  bool
	Int   int64
	Float float64
}

// IsString reports whether the value carries a textual payload in Str.
func (v Value) IsString() bool {
	switch v.Kind {
	case KindString, KindProtectedString, KindContent, KindRawXML:
		return true
	}

	return false
}

// NewString returns a plain string value.
func NewString(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NewProtectedString returns a script-source value.
func NewProtectedString(s string) Value {
	return Value{Kind: KindProtectedString, Str: s}
}

// NewBinaryString returns a raw-bytes value.
func NewBinaryString(b []byte) Value {
	return Value{Kind: KindBinaryString, Bytes: b}
}

// NewContent returns an asset-reference value.
func NewContent(s string) Value {
	return Value{Kind: KindContent, Str: s}
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// NewInt32 returns a 32-bit integer value.
func NewInt32(n int32) Value {
	return Value{Kind: KindInt32, Int: int64(n)}
}

// NewInt64 returns a 64-bit integer value.
func NewInt64(n int64) Value {
	return Value{Kind: KindInt64, Int: n}
}

// NewFloat32 returns a single-precision value.
func NewFloat32(f float32) Value {
	return Value{Kind: KindFloat32, Float: float64(f)}
}

// NewFloat64 returns a double-precision value.
func NewFloat64(f float64) Value {
	return Value{Kind: KindFloat64, Float: f}
}

// NewToken returns an enum-ordinal value.
func NewToken(ordinal uint32) Value {
	return Value{Kind: KindToken, Int: int64(ordinal)}
}

// NewRawXML returns a passthrough value holding an unmodeled XML property
// element.
func NewRawXML(inner string) Value {
	return Value{Kind: KindRawXML, Str: inner}
}
