package commands

import (
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuilder/internal/themes"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
)

// SelectCmd implements the 'select' command.
type SelectCmd struct {
	Wizard string `arg:"" help:"Wizard document (JSON or YAML)" type:"existingfile"`
}

type selectionView struct {
	Theme      string         `yaml:"theme"`
	Name       string         `yaml:"name"`
	Reason     string         `yaml:"reason"`
	Category   string         `yaml:"category"`
	Score      int            `yaml:"score"`
	Parameters map[string]any `yaml:"parameters"`
}

func (s *SelectCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	w, err := wizard.Load(s.Wizard)
	if err != nil {
		return err
	}
	if err := w.Validate(); err != nil {
		return err
	}
	registry, err := themes.NewBuiltinRegistry(cfg.Themes.Default)
	if err != nil {
		return err
	}
	sel, err := themes.NewSelector(registry).Select(w)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(selectionView{
		Theme:      sel.Theme.ID,
		Name:       sel.Theme.Name,
		Reason:     string(sel.Reason),
		Category:   string(sel.Category),
		Score:      sel.Score,
		Parameters: sel.Parameters,
	})
}
