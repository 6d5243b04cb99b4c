package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/sitebuilder/internal/themes"
)

// ThemesCmd implements the 'themes' command.
type ThemesCmd struct{}

func (t *ThemesCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	registry, err := themes.NewBuiltinRegistry(cfg.Themes.Default)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tORIGIN\tCATEGORIES\tDEFAULT")
	def := registry.Default().ID
	for _, d := range registry.All() {
		mark := ""
		if d.ID == def {
			mark = "*"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Origin.Kind, strings.Join(d.Categories, ","), mark)
	}
	return tw.Flush()
}
