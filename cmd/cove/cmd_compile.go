package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vcrobe/cove/compiler"
)

func newCompileCmd(g *globalOptions) *cobra.Command {
	var (
		tag      string
		asJSON   bool
		observed []string
	)
	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Compile a markup file and print the definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(args[0], tag)
			if err != nil {
				return err
			}
			def, err := compiler.Compile(src.Tag, src.Markup, observed)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(def)
			}
			printDefinition(cmd.OutOrStdout(), def)
			return nil
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "component tag (default: from the file name)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the definition as JSON")
	cmd.Flags().StringSliceVar(&observed, "observe", nil, "observed attribute names")
	return cmd
}

func printDefinition(w io.Writer, def *compiler.Definition) {
	fmt.Fprintf(w, "<%s>\n", def.Tag)
	fmt.Fprintf(w, "template:\n%s\n", indent(def.Template))
	if def.Style != "" {
		fmt.Fprintf(w, "style:\n%s\n", indent(def.Style))
	}
	if def.Script != "" {
		fmt.Fprintf(w, "script:\n%s\n", indent(def.Script))
	}
	for _, h := range compiler.Hooks {
		if body, ok := def.Hooks[h]; ok {
			fmt.Fprintf(w, "hook %s:\n%s\n", h, indent(body))
		}
	}
	if len(def.Imports) > 0 {
		fmt.Fprintf(w, "imports: %v\n", def.Imports)
	}
	fmt.Fprintf(w, "flags: %+v\n", def.Flags)
	for _, warn := range def.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func indent(s string) string {
	out := make([]byte, 0, len(s)+16)
	out = append(out, "    "...)
	for i := 0; i < len(s); i++ {
		out = append(out, s[i])
		if s[i] == '\n' && i < len(s)-1 {
			out = append(out, "    "...)
		}
	}
	return string(out)
}
