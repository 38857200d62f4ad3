package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spire-dev/spire/internal/cliconfig"
	"github.com/spire-dev/spire/internal/schema"
	"github.com/spire-dev/spire/pkg/log"
)

var exampleUsage = strings.TrimSpace(`
  protogen --schema schema --out pkg/protocol/ids_gen.go
  protogen --schema schema --out pkg/protocol/ids_gen.go --watch
`)

func main() {
	var (
		schemaDir string
		out       string
		pkg       string
		watch     bool
	)

	zl := cliconfig.Logger()
	logger := log.NewZerologAdapterWithLogger(zl)

	compile := func() error {
		changed, err := schema.Compile(schemaDir, out, pkg)
		if err != nil {
			return err
		}
		if changed {
			logger.Info("generated", log.String("out", out))
		} else {
			logger.Debug("unchanged", log.String("out", out))
		}
		return nil
	}

	root := &cobra.Command{
		Use:           "protogen",
		Short:         "Generate the protocol id table from schema files",
		Example:       exampleUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if schemaDir == "" || out == "" {
				return fmt.Errorf("--schema and --out are required")
			}
			if err := compile(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := schema.NewWatcher(schemaDir, schema.DefaultDebounce, logger, func() {
				if err := compile(); err != nil {
					logger.Error("generate failed", log.Err(err))
				}
			})
			return w.Run(ctx)
		},
	}

	root.Flags().StringVar(&schemaDir, "schema", "", "directory of <category>.json schema files")
	root.Flags().StringVar(&out, "out", "", "output Go file")
	root.Flags().StringVar(&pkg, "package", schema.DefaultPackage, "package name of the generated file")
	root.Flags().BoolVar(&watch, "watch", false, "regenerate when schema files change")

	if err := root.Execute(); err != nil {
		zl.Error().Err(err).Msg("protogen")
		os.Exit(1)
	}
}
