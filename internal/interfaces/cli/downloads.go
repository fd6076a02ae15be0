package cli

import (
	"github.com/spf13/cobra"

	"github.com/networknext/portal/internal/domain/downloads"
)

func newDownloadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downloads",
		Short: "Print the download catalog the portal serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			p := cliCtx.Config.Portal
			catalog, err := downloads.SDK(p.SDKVersion, p.SDKURL, p.DocsURL)
			if err != nil {
				return err
			}
			return PrintResult(cmd, catalogTable{catalog})
		},
	}
}

type catalogTable struct {
	*downloads.Catalog
}

func (t catalogTable) TableHeaders() []string { return []string{"LABEL", "URL"} }

func (t catalogTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t.Items))
	for _, it := range t.Items {
		rows = append(rows, []string{it.Label, it.URL})
	}
	return rows
}
