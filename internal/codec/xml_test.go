package codec

import (
	"bytes"
	"strings"
	"testing"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

const sampleXML = `<roblox xmlns:xmime="http://www.w3.org/2005/05/xmlmime" version="4">
	<Meta name="ExplicitAutoJoints">true</Meta>
	<Item class="Folder" referent="RBX0000000000000001">
		<Properties>
			<string name="Name">PluginRoot</string>
		</Properties>
		<Item class="Script" referent="RBX0000000000000002">
			<Properties>
				<string name="Name">Loader</string>
				<ProtectedString name="Source"><![CDATA[print("loaded")
]]></ProtectedString>
				<bool name="Disabled">false</bool>
				<token name="RunContext">1</token>
			</Properties>
		</Item>
		<Item class="ModuleScript" referent="RBX0000000000000003">
			<Properties>
				<string name="Name">Util</string>
				<ProtectedString name="Source">return {}</ProtectedString>
				<int name="Priority">3</int>
				<int64 name="BigCounter">-9000000000</int64>
				<float name="Ratio">0.5</float>
				<double name="Precise">1.25</double>
				<Content name="LinkedSource"><null></null></Content>
				<BinaryString name="Tags">aGVsbG8=</BinaryString>
				<UniqueId name="UniqueId">44b188dace632b4702e9c68d004815fc</UniqueId>
			</Properties>
		</Item>
	</Item>
</roblox>`

func decodeSample(t *testing.T, doc string) *m.Tree {
	t.Helper()

	tree, err := decodeXML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decodeXML() error = %v", err)
	}

	return tree
}

func childNamed(t *testing.T, tree *m.Tree, parent m.Ref, name string) *m.Instance {
	t.Helper()

	for _, ref := range tree.ChildrenOf(parent) {
		if inst := tree.Get(ref); inst.Name == name {
			return inst
		}
	}

	t.Fatalf("instance %q not found under %s", name, parent)

	return nil
}

func TestDecodeXML(t *testing.T) {
	tree := decodeSample(t, sampleXML)

	roots := tree.ChildrenOf(tree.Root())
	if len(roots) != 1 {
		t.Fatalf("decodeXML() produced %d top-level instances, want 1", len(roots))
	}

	folder := tree.Get(roots[0])
	if folder.ClassName != m.ClassFolder || folder.Name != "PluginRoot" {
		t.Fatalf("decodeXML() root = %s %q, want Folder \"PluginRoot\"", folder.ClassName, folder.Name)
	}

	if folder.Ref != "RBX0000000000000001" {
		t.Fatalf("decodeXML() did not keep the referent, got %s", folder.Ref)
	}

	loader := childNamed(t, tree, folder.Ref, "Loader")
	if loader.ClassName != m.ClassScript {
		t.Fatalf("Loader class = %s, want Script", loader.ClassName)
	}

	source, ok := loader.Source()
	if !ok || source != "print(\"loaded\")\n" {
		t.Fatalf("Loader source = %q, ok = %v", source, ok)
	}

	if v := loader.Properties["Disabled"]; v.Kind != m.KindBool || v.Bool {
		t.Fatalf("Disabled = %+v, want bool false", v)
	}

	if v := loader.Properties["RunContext"]; v.Kind != m.KindToken || v.Int != 1 {
		t.Fatalf("RunContext = %+v, want token 1", v)
	}

	util := childNamed(t, tree, folder.Ref, "Util")

	if v := util.Properties["Priority"]; v.Kind != m.KindInt32 || v.Int != 3 {
		t.Fatalf("Priority = %+v, want int 3", v)
	}

	if v := util.Properties["BigCounter"]; v.Kind != m.KindInt64 || v.Int != -9000000000 {
		t.Fatalf("BigCounter = %+v, want int64 -9000000000", v)
	}

	if v := util.Properties["Ratio"]; v.Kind != m.KindFloat32 || v.Float != 0.5 {
		t.Fatalf("Ratio = %+v, want float 0.5", v)
	}

	if v := util.Properties["Precise"]; v.Kind != m.KindFloat64 || v.Float != 1.25 {
		t.Fatalf("Precise = %+v, want double 1.25", v)
	}

	if v := util.Properties["LinkedSource"]; v.Kind != m.KindContent || v.Str != "" {
		t.Fatalf("LinkedSource = %+v, want empty content", v)
	}

	if v := util.Properties["Tags"]; v.Kind != m.KindBinaryString || string(v.Bytes) != "hello" {
		t.Fatalf("Tags = %+v, want binary \"hello\"", v)
	}

	raw := util.Properties["UniqueId"]
	if raw.Kind != m.KindRawXML || !strings.Contains(raw.Str, "44b188dace632b4702e9c68d004815fc") {
		t.Fatalf("UniqueId = %+v, want raw passthrough", raw)
	}
}

func TestEncodeXML_RoundTrip(t *testing.T) {
	tree := decodeSample(t, sampleXML)

	var buf bytes.Buffer

	if err := encodeXML(&buf, tree, tree.ChildrenOf(tree.Root())); err != nil {
		t.Fatalf("encodeXML() error = %v", err)
	}

	again := decodeSample(t, buf.String())

	folder := again.Get(again.ChildrenOf(again.Root())[0])
	if folder.Name != "PluginRoot" {
		t.Fatalf("round trip lost the folder name, got %q", folder.Name)
	}

	loader := childNamed(t, again, folder.Ref, "Loader")

	source, ok := loader.Source()
	if !ok || source != "print(\"loaded\")\n" {
		t.Fatalf("round trip changed the source, got %q", source)
	}

	util := childNamed(t, again, folder.Ref, "Util")

	if v := util.Properties["Priority"]; v.Kind != m.KindInt32 || v.Int != 3 {
		t.Fatalf("round trip changed Priority: %+v", v)
	}

	if v := util.Properties["BigCounter"]; v.Kind != m.KindInt64 || v.Int != -9000000000 {
		t.Fatalf("round trip changed BigCounter: %+v", v)
	}

	if v := util.Properties["Ratio"]; v.Kind != m.KindFloat32 || v.Float != 0.5 {
		t.Fatalf("round trip changed Ratio: %+v", v)
	}

	if v := util.Properties["Precise"]; v.Kind != m.KindFloat64 || v.Float != 1.25 {
		t.Fatalf("round trip changed Precise: %+v", v)
	}

	if v := util.Properties["Tags"]; string(v.Bytes) != "hello" {
		t.Fatalf("round trip changed Tags, got %q", v.Bytes)
	}

	if v := util.Properties["UniqueId"]; v.Kind != m.KindRawXML {
		t.Fatalf("round trip dropped the raw property, got %+v", v)
	}
}

func TestEncodeXML_SplitsCDATATerminator(t *testing.T) {
	tree := m.NewTree()
	script := tree.NewInstance(m.ClassModuleScript, "Tricky", tree.Root())

	source := "local s = \"]]>\"\nreturn s\n"
	tree.Get(script).SetSource(source)

	var buf bytes.Buffer

	if err := encodeXML(&buf, tree, []m.Ref{script}); err != nil {
		t.Fatalf("encodeXML() error = %v", err)
	}

	if !strings.Contains(buf.String(), "]]]]><![CDATA[>") {
		t.Fatalf("encodeXML() did not split the CDATA terminator:\n%s", buf.String())
	}

	again := decodeSample(t, buf.String())

	inst := childNamed(t, again, again.Root(), "Tricky")

	got, ok := inst.Source()
	if !ok || got != source {
		t.Fatalf("round trip changed the source: got %q, want %q", got, source)
	}
}

func TestDecodeXML_Errors(t *testing.T) {
	t.Run("no roblox element", func(t *testing.T) {
		if _, err := decodeXML(strings.NewReader("plain text")); err == nil {
			t.Fatalf("decodeXML() expected error for non-XML input")
		}
	})

	t.Run("wrong top-level element", func(t *testing.T) {
		if _, err := decodeXML(strings.NewReader("<html></html>")); err == nil {
			t.Fatalf("decodeXML() expected error for foreign document")
		}
	})

	t.Run("item without class", func(t *testing.T) {
		doc := `<roblox version="4"><Item referent="RBX1"></Item></roblox>`
		if _, err := decodeXML(strings.NewReader(doc)); err == nil {
			t.Fatalf("decodeXML() expected error for classless item")
		}
	})

	t.Run("truncated document", func(t *testing.T) {
		doc := `<roblox version="4"><Item class="Folder">`
		if _, err := decodeXML(strings.NewReader(doc)); err == nil {
			t.Fatalf("decodeXML() expected error for truncated document")
		}
	})
}

func TestDecodeXML_GeneratesRefsWhenMissing(t *testing.T) {
	doc := `<roblox version="4"><Item class="Folder"><Properties><string name="Name">Anon</string></Properties></Item></roblox>`

	tree := decodeSample(t, doc)

	roots := tree.ChildrenOf(tree.Root())
	if len(roots) != 1 {
		t.Fatalf("decodeXML() produced %d top-level instances, want 1", len(roots))
	}

	if roots[0] == m.NilRef {
		t.Fatalf("decodeXML() left the generated referent empty")
	}
}
