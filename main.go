// Package main is the entry point for the PluginProxy Transpiler CLI.
package main

import "pluginproxy.dev/pkg/pluginproxy/cmd"

func main() {
	cmd.Execute()
}
