package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

// decodeXML parses an rbxmx/rbxlx document. Property elements the model
// does not understand are kept verbatim as raw XML so they survive an
// XML-to-XML round trip.
func decodeXML(r io.Reader) (*m.Tree, error) {
	tree := m.NewTree()
	d := xml.NewDecoder(r)

	rootSeen := false

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, &m.CodecError{Op: "decode", Format: "xml", Err: err}
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Local != "roblox" {
			return nil, &m.CodecError{Op: "decode", Format: "xml", Err: fmt.Errorf("unexpected top-level element <%s>", start.Name.Local)}
		}

		rootSeen = true

		if err := decodeRobloxElement(d, tree); err != nil {
			return nil, &m.CodecError{Op: "decode", Format: "xml", Err: err}
		}
	}

	if !rootSeen {
		return nil, &m.CodecError{Op: "decode", Format: "xml", Err: fmt.Errorf("no <roblox> element found")}
	}

	return tree, nil
}

func decodeRobloxElement(d *xml.Decoder, tree *m.Tree) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "Item" {
				if err := decodeItem(d, tree, tree.Root(), t); err != nil {
					return err
				}

				continue
			}

			// Meta, External, SharedStrings and anything else at this
			// level carry no instance data.
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeItem(d *xml.Decoder, tree *m.Tree, parent m.Ref, start xml.StartElement) error {
	var class, referent string

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "class":
			class = attr.Value
		case "referent":
			referent = attr.Value
		}
	}

	if class == "" {
		return fmt.Errorf("<Item> without a class attribute")
	}

	var ref m.Ref
	if referent == "" {
		ref = tree.NewInstance(class, "", parent)
	} else {
		ref = m.Ref(referent)

		inst := &m.Instance{Ref: ref, ClassName: class, Properties: map[string]m.Value{}}
		if err := tree.AddInstance(inst); err != nil {
			return err
		}

		if err := tree.SetParent(ref, parent); err != nil {
			return err
		}
	}

	inst := tree.Get(ref)

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Properties":
				if err := decodeProperties(d, inst); err != nil {
					return err
				}
			case "Item":
				if err := decodeItem(d, tree, ref, t); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeProperties(d *xml.Decoder, inst *m.Instance) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := decodeProperty(d, inst, t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeProperty(d *xml.Decoder, inst *m.Instance, start xml.StartElement) error {
	name := xmlAttr(start, "name")
	if name == "" {
		return d.Skip()
	}

	switch start.Name.Local {
	case "string":
		text, err := elementText(d)
		if err != nil {
			return err
		}

		// Instance names travel as a property in this encoding; the
		// model keeps them on the instance itself.
		if name == "Name" {
			inst.Name = text
			return nil
		}

		inst.Properties[name] = m.NewString(text)
	case "ProtectedString":
		text, err := elementText(d)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewProtectedString(text)
	case "BinaryString":
		text, err := elementText(d)
		if err != nil {
			return err
		}

		raw, err := base64.StdEncoding.DecodeString(strings.Map(dropSpace, text))
		if err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}

		inst.Properties[name] = m.NewBinaryString(raw)
	case "bool":
		text, err := elementText(d)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewBool(strings.TrimSpace(text) == "true")
	case "int":
		n, err := elementInt(d, name, 32)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewInt32(int32(n))
	case "int64":
		n, err := elementInt(d, name, 64)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewInt64(n)
	case "float":
		f, err := elementFloat(d, name)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewFloat32(float32(f))
	case "double":
		f, err := elementFloat(d, name)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewFloat64(f)
	case "token":
		n, err := elementInt(d, name, 64)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewToken(uint32(n))
	case "Content":
		text, err := contentText(d)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewContent(text)
	default:
		raw, err := rawElement(d, start)
		if err != nil {
			return err
		}

		inst.Properties[name] = m.NewRawXML(raw)
	}

	return nil
}

func xmlAttr(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}

	return ""
}

func dropSpace(r rune) rune {
	switch r {
	case ' ', '\t', '\n', '\r':
		return -1
	}

	return r
}

// elementText gathers the character data up to the element's end tag.
// CDATA sections arrive as ordinary character data.
func elementText(d *xml.Decoder) (string, error) {
	var b strings.Builder

	depth := 1

	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.CharData:
			if depth == 1 {
				b.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}

	return b.String(), nil
}

func elementInt(d *xml.Decoder, name string, bits int) (int64, error) {
	text, err := elementText(d)
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", name, err)
	}

	return n, nil
}

func elementFloat(d *xml.Decoder, name string) (float64, error) {
	text, err := elementText(d)
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", name, err)
	}

	return f, nil
}

// contentText reads a <Content> body: either <null/> or a <url> child.
func contentText(d *xml.Decoder) (string, error) {
	var url string

	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "url" {
				text, err := elementText(d)
				if err != nil {
					return "", err
				}

				url = text

				continue
			}

			if err := d.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return url, nil
		}
	}
}

// rawElement re-renders an unmodeled property element, outer tag included,
// so encode can replay it untouched.
func rawElement(d *xml.Decoder, start xml.StartElement) (string, error) {
	var buf bytes.Buffer

	e := xml.NewEncoder(&buf)
	if err := e.EncodeToken(start.Copy()); err != nil {
		return "", err
	}

	depth := 1

	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}

		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}

		if err := e.EncodeToken(xml.CopyToken(tok)); err != nil {
			return "", err
		}
	}

	if err := e.Flush(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// encodeXML writes the rbxmx/rbxlx form of the root subtrees.
func encodeXML(w io.Writer, tree *m.Tree, roots []m.Ref) error {
	var buf bytes.Buffer

	buf.WriteString(`<roblox xmlns:xmime="http://www.w3.org/2005/05/xmlmime" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" version="4">` + "\n")

	for _, root := range roots {
		if tree.Get(root) == nil {
			return &m.CodecError{Op: "encode", Format: "xml", Err: fmt.Errorf("unknown root reference %q", root)}
		}

		if err := encodeItem(&buf, tree, root, 1); err != nil {
			return &m.CodecError{Op: "encode", Format: "xml", Err: err}
		}
	}

	buf.WriteString("</roblox>")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return &m.CodecError{Op: "encode", Format: "xml", Err: err}
	}

	return nil
}

func encodeItem(buf *bytes.Buffer, tree *m.Tree, ref m.Ref, depth int) error {
	inst := tree.Get(ref)
	pad := strings.Repeat("\t", depth)

	fmt.Fprintf(buf, "%s<Item class=\"%s\" referent=\"%s\">\n", pad, escapeXML(inst.ClassName), escapeXML(string(ref)))
	fmt.Fprintf(buf, "%s\t<Properties>\n", pad)

	props := make([]string, 0, len(inst.Properties)+1)
	props = append(props, "Name")

	for name := range inst.Properties {
		props = append(props, name)
	}

	sort.Strings(props)

	for _, name := range props {
		if err := encodeProperty(buf, inst, name, pad+"\t\t"); err != nil {
			return err
		}
	}

	fmt.Fprintf(buf, "%s\t</Properties>\n", pad)

	for _, child := range tree.ChildrenOf(ref) {
		if err := encodeItem(buf, tree, child, depth+1); err != nil {
			return err
		}
	}

	fmt.Fprintf(buf, "%s</Item>\n", pad)

	return nil
}

func encodeProperty(buf *bytes.Buffer, inst *m.Instance, name, pad string) error {
	if name == "Name" {
		fmt.Fprintf(buf, "%s<string name=\"Name\">%s</string>\n", pad, escapeXML(inst.Name))
		return nil
	}

	v := inst.Properties[name]
	attr := escapeXML(name)

	switch v.Kind {
	case m.KindString:
		fmt.Fprintf(buf, "%s<string name=\"%s\">%s</string>\n", pad, attr, escapeXML(v.Str))
	case m.KindProtectedString:
		fmt.Fprintf(buf, "%s<ProtectedString name=\"%s\"><![CDATA[%s]]></ProtectedString>\n", pad, attr, splitCDATA(v.Str))
	case m.KindBinaryString:
		fmt.Fprintf(buf, "%s<BinaryString name=\"%s\">%s</BinaryString>\n", pad, attr, base64.StdEncoding.EncodeToString(v.Bytes))
	case m.KindContent:
		if v.Str == "" {
			fmt.Fprintf(buf, "%s<Content name=\"%s\"><null></null></Content>\n", pad, attr)
		} else {
			fmt.Fprintf(buf, "%s<Content name=\"%s\"><url>%s</url></Content>\n", pad, attr, escapeXML(v.Str))
		}
	case m.KindBool:
		fmt.Fprintf(buf, "%s<bool name=\"%s\">%t</bool>\n", pad, attr, v.Bool)
	case m.KindInt32:
		fmt.Fprintf(buf, "%s<int name=\"%s\">%d</int>\n", pad, attr, v.Int)
	case m.KindInt64:
		fmt.Fprintf(buf, "%s<int64 name=\"%s\">%d</int64>\n", pad, attr, v.Int)
	case m.KindFloat32:
		fmt.Fprintf(buf, "%s<float name=\"%s\">%s</float>\n", pad, attr, formatFloat(v.Float))
	case m.KindFloat64:
		fmt.Fprintf(buf, "%s<double name=\"%s\">%s</double>\n", pad, attr, formatFloat(v.Float))
	case m.KindToken:
		fmt.Fprintf(buf, "%s<token name=\"%s\">%d</token>\n", pad, attr, v.Int)
	case m.KindRawXML:
		fmt.Fprintf(buf, "%s%s\n", pad, v.Str)
	default:
		slog.Warn("skipping property with unsupported kind in xml encode", "property", name, "kind", int(v.Kind))
	}

	return nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}

	return buf.String()
}

// splitCDATA keeps CDATA sections well formed when the payload itself
// contains a terminator.
func splitCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
