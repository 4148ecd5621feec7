package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
	"github.com/conduit-lang/metabridge/internal/cli/ui"
	"github.com/conduit-lang/metabridge/internal/config"
	"github.com/conduit-lang/metabridge/internal/logging"
)

var (
	catalogUser string
	catalogYAML bool
	catalogType string
)

// NewCatalogCommand creates the catalog command
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Reconcile native types with the cohort and report the outcome",
		Long: `Read every type definition from the native store, map it to its cohort
equivalent and reconcile it with the type registry. Prints one line per native
type saying whether it was published, matched, skipped or abandoned.`,
		RunE: runCatalog,
	}

	cmd.Flags().StringVarP(&catalogUser, "user", "u", "metabridge", "User id the catalog is built for")
	cmd.Flags().BoolVar(&catalogYAML, "yaml", false, "Print the outcomes as YAML")
	cmd.Flags().StringVarP(&catalogType, "type", "t", "", "Only report the type with this native or cohort name")

	return cmd
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	mc, release, err := openCollection(cmd.Context(), cfg, nil, logger)
	if err != nil {
		return err
	}
	defer release()

	var catalog *typecatalog.Catalog
	err = ui.WithSpinner(cmd.ErrOrStderr(), "Reconciling native types", noColor, func() error {
		catalog, err = mc.Reconcile(cmd.Context(), catalogUser)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to build type catalog: %w", err)
	}

	if catalogType != "" {
		filtered, ok := filterCatalog(catalog, catalogType)
		if !ok {
			problem := ui.TypeNotFound(catalogType, ui.Suggest(catalogType, catalogNames(catalog)))
			fmt.Fprint(cmd.ErrOrStderr(), problem.Format(noColor))
			return fmt.Errorf("type %s not found", catalogType)
		}
		catalog = filtered
	}

	out := cmd.OutOrStdout()
	if catalogYAML {
		data, err := yaml.Marshal(catalog.SortedOutcomes())
		if err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	ui.CatalogReport(out, mc.MetadataCollectionName(), catalog, noColor)
	return nil
}

func filterCatalog(catalog *typecatalog.Catalog, name string) (*typecatalog.Catalog, bool) {
	out := &typecatalog.Catalog{}
	for _, o := range catalog.Outcomes {
		if o.NativeName == name || o.Name == name {
			out.Outcomes = append(out.Outcomes, o)
		}
	}
	return out, len(out.Outcomes) > 0
}

func catalogNames(catalog *typecatalog.Catalog) []string {
	names := make([]string, 0, 2*len(catalog.Outcomes))
	for _, o := range catalog.Outcomes {
		names = append(names, o.NativeName)
		if o.Name != "" && o.Name != o.NativeName {
			names = append(names, o.Name)
		}
	}
	return names
}
