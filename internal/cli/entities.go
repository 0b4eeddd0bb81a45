package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/datastore/internal/entities"
)

// EntitiesOptions holds flags for the entities command.
type EntitiesOptions struct {
	*RootOptions
	Config string
}

// EntityInfo is one row of the entities listing.
type EntityInfo struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	BaseURL string   `json:"baseURL"`
	Key     string   `json:"key"`
	Methods []string `json:"methods"`
}

// NewEntitiesCommand creates the entities command.
func NewEntitiesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntitiesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entity configuration",
		Long: `List the REST entity table and the selector and action shortcuts
generated for each entity.

Without --config the built-in table is listed.

Examples:
  datastore entities
  datastore entities --config ./entities.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEntities(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE entity table (defaults to the built-in table)")

	return cmd
}

func listEntities(cmd *cobra.Command, opts *EntitiesOptions) error {
	out := newFormatter(cmd, opts.RootOptions)

	table, err := loadEntityTable(opts.Config)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "failed to load entity config", err)
	}

	// Shortcut collisions only surface when the store config is built.
	if _, err := entities.StoreConfig(table, nil); err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "invalid entity config", err)
	}

	infos := describeEntities(table)
	out.VerboseLog("loaded %d entities", len(infos))

	if out.JSON() {
		return out.Success(infos)
	}
	return writeEntityTable(out.Writer, infos)
}

func loadEntityTable(path string) ([]entities.Entity, error) {
	if path == "" {
		return entities.Default()
	}
	return entities.LoadFile(path)
}

func describeEntities(table []entities.Entity) []EntityInfo {
	infos := make([]EntityInfo, 0, len(table))
	index := make(map[[2]string]int, len(table))
	for _, e := range table {
		index[[2]string{e.Kind, e.Name}] = len(infos)
		infos = append(infos, EntityInfo{
			Kind:    e.Kind,
			Name:    e.Name,
			BaseURL: e.BaseURL,
			Key:     e.Key,
			Methods: []string{},
		})
	}
	for _, sc := range entities.Shortcuts(table) {
		i := index[[2]string{sc.Kind, sc.Name}]
		infos[i].Methods = append(infos[i].Methods, sc.Method)
	}
	return infos
}

func writeEntityTable(w io.Writer, infos []EntityInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tKEY\tBASE URL\tMETHODS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", info.Kind, info.Name, info.Key, info.BaseURL, info.Methods)
	}
	return tw.Flush()
}
