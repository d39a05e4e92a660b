package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/poitiers-events/internal/config"
	"github.com/pfrederiksen/poitiers-events/internal/scraper"
)

// SourceInfo is one row of the sources command.
type SourceInfo struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"`
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the venues and whether they are enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, format, err := setup()
			if err != nil {
				return err
			}
			infos := listSources(cfg)
			if format == FormatJSON {
				return writeJSON(cmd.OutOrStdout(), infos)
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Enabled", "URL", "Timeout"})
			for _, info := range infos {
				t.AppendRow(table.Row{info.Name, info.Enabled, info.URL, info.Timeout})
			}
			t.Render()
			return nil
		},
	}
}

func listSources(cfg *config.Config) []SourceInfo {
	infos := make([]SourceInfo, 0, len(scraper.Names))
	for _, name := range scraper.Names {
		info := SourceInfo{
			Name:    name,
			Enabled: cfg.SourceEnabled(name),
			URL:     scraper.Homepages[name],
		}
		if timeout := cfg.SourceTimeout(name); timeout > 0 {
			info.Timeout = timeout.String()
		}
		infos = append(infos, info)
	}
	return infos
}
