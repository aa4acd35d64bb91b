package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/inference"
	"github.com/menta2k/image-labeler/pkg/types"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known tagger models and whether they are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Key", "Aliases", "Repository", "Description", "Size", "Input", "Installed"})
			tw.AppendRows(buildModelRows(cfg.Tagger.ModelDir, cfg.Tagger.Model))
			tw.SetColumnConfigs([]table.ColumnConfig{
				{Name: "Size", Align: text.AlignRight},
				{Name: "Input", Align: text.AlignRight},
			})
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tw.Render())
			fmt.Fprintf(out, "Models are read from %s/<key>/{model.onnx,selected_tags.csv}\n", cfg.Tagger.ModelDir)
			return nil
		},
	}
}

func buildModelRows(modelDir, selected string) []table.Row {
	current, _ := inference.Lookup(selected)
	rows := make([]table.Row, 0, len(inference.Catalogue))
	for _, m := range inference.Catalogue {
		key := m.Key
		if m.Key == current.Key {
			key += " *"
		}
		rows = append(rows, table.Row{
			key,
			strings.Join(m.Aliases, ", "),
			m.RepoID,
			m.Label,
			utils.FormatFileSize(int64(m.SizeMB) << 20),
			strconv.Itoa(m.InputSize),
			yesNo(installed(inference.ResolveSpec(m.Key, modelDir))),
		})
	}
	return rows
}

func installed(spec types.ModelSpec) bool {
	backend, ok := spec.Backend.(types.TaggerBackend)
	if !ok {
		return false
	}
	return utils.FileExists(backend.ModelPath) && utils.FileExists(backend.TagsPath)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
