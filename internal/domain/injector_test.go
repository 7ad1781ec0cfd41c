package domain

import (
	"testing"

	m "pluginproxy.dev/pkg/pluginproxy/internal/model"
)

func TestAssemble(t *testing.T) {
	body := "print(\"hello\")\n"

	t.Run("all three declarations in fixed order with one marker", func(t *testing.T) {
		got := string(Assemble([]byte(body), m.Requirements{Globals: true, Plugin: true, Enums: true}, 2))

		want := "local _proxyGlobals = require(script.Parent.Parent).Globals\n" +
			"local plugin = _proxyGlobals.plugin\n" +
			"local Enums = _proxyGlobals.Enums\n" +
			"-- Autogenerated with PluginProxy Transpiler\n" +
			"\n" +
			body
		if got != want {
			t.Errorf("Assemble() = %q, want %q", got, want)
		}
	})

	t.Run("entry point never requires itself", func(t *testing.T) {
		got := string(Assemble([]byte(body), m.Requirements{Globals: true}, 0))

		want := "local plugin = _proxyGlobals.plugin\n" +
			"-- Autogenerated with PluginProxy Transpiler\n" +
			"\n" +
			body
		if got != want {
			t.Errorf("Assemble() = %q, want %q", got, want)
		}
	})

	t.Run("entry point defines the plugin handle even without the flag", func(t *testing.T) {
		got := string(Assemble([]byte(body), m.Requirements{}, 0))

		want := "local plugin = _proxyGlobals.plugin\n" +
			"-- Autogenerated with PluginProxy Transpiler\n" +
			"\n" +
			body
		if got != want {
			t.Errorf("Assemble() = %q, want %q", got, want)
		}
	})

	t.Run("plugin flag alone pulls in the globals require", func(t *testing.T) {
		got := string(Assemble([]byte(body), m.Requirements{Plugin: true}, 1))

		want := "local _proxyGlobals = require(script.Parent).Globals\n" +
			"local plugin = _proxyGlobals.plugin\n" +
			"-- Autogenerated with PluginProxy Transpiler\n" +
			"\n" +
			body
		if got != want {
			t.Errorf("Assemble() = %q, want %q", got, want)
		}
	})

	t.Run("no requirements returns the input unchanged", func(t *testing.T) {
		got := string(Assemble([]byte(body), m.Requirements{}, 3))

		if got != body {
			t.Errorf("Assemble() = %q, want unchanged %q", got, body)
		}
	})
}
