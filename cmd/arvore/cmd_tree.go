package main

import (
	"fmt"
	"io"
	"strings"

	"arvore/internal/api"
	"arvore/internal/tree"

	"github.com/spf13/cobra"
)

func newTreeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <id|minha>",
		Short: "Mostrar a árvore genealógica de uma pessoa",
		Long: `Prints the family tree of a person, one generation per block.

Use "minha" to show the tree of the person set as you.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}

			var id int
			if args[0] == "minha" {
				me, ok := e.state.CurrentUserID()
				if !ok {
					return fmt.Errorf("nenhuma pessoa definida como você: use 'arvore people set-me <id>'")
				}
				id = me
			} else if id, err = parseID(args[0]); err != nil {
				return err
			}

			resp, err := e.client.GetTree(cmd.Context(), id)
			if err != nil {
				return describe(err)
			}
			writeOutline(cmd.OutOrStdout(), tree.Build(resp))
			return nil
		},
	}
}

// writeOutline prints v as indented text. Couples are joined with "♥".
func writeOutline(w io.Writer, v *tree.View) {
	if v.Root != nil {
		fmt.Fprintf(w, "Árvore de %s\n\n", v.Root.Nome)
	}
	for _, lvl := range v.Levels {
		fmt.Fprintf(w, "Geração %d\n", lvl.Level)
		for _, g := range lvl.Groups {
			names := make([]string, 0, len(g.Nodes))
			for _, n := range g.Nodes {
				names = append(names, outlineNode(n))
			}
			sep := ", "
			if g.Type == api.GroupCouple {
				sep = " ♥ "
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(names, sep))
		}
		fmt.Fprintln(w)
	}
	if len(v.Regions) > 0 {
		parts := make([]string, 0, len(v.Regions))
		for _, r := range v.Regions {
			parts = append(parts, fmt.Sprintf("%s (%d)", r.Regiao, r.Count))
		}
		fmt.Fprintf(w, "Regiões da família: %s\n", strings.Join(parts, ", "))
	}
}

func outlineNode(n tree.Node) string {
	s := fmt.Sprintf("%s [%d]", n.Nome, n.PersonID())
	if n.IsRootDisplayNode {
		s = "★ " + s
	}
	if n.Relacao != "" {
		s += " (" + n.Relacao + ")"
	}
	return s
}
