package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cli "github.com/blimu-dev/svc-gen/internal/cli"
	"github.com/blimu-dev/svc-gen/internal/logger"
	"github.com/blimu-dev/svc-gen/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	logger.Cleanup()
	if err != nil {
		pterm.Error.Println(err)
		if hint := errors.FlattenHints(err); hint != "" {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug, jsonLogs bool

	root := &cobra.Command{
		Use:           "svc-gen",
		Short:         "Generate Python services from model documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Initialize(logger.Options{Debug: debug, JSON: jsonLogs})
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newOpenAPICmd())
	return root
}

// generateFlags registers the flags shared by generate and watch and binds
// them to v, so they override the config file and environment.
func generateFlags(cmd *cobra.Command, v *viper.Viper, p *cli.RunGenerateParams) {
	cmd.Flags().StringVarP(&p.ModelPath, "model", "m", "", "Model document (yaml/json/toml)")
	cmd.Flags().StringVarP(&p.ConfigPath, "config", "c", "", "Path to svcgen.yaml config")
	cmd.Flags().StringArrayVar(&p.Only, "decl", nil, "Generate only the named declaration (repeatable)")
	cmd.Flags().String("out", "", "Output directory")
	cmd.Flags().String("lang", "", "Target language")
	cmd.Flags().Int("parallel", 0, "Declarations generated at once")
	_ = cmd.MarkFlagRequired("model")

	_ = v.BindPFlag("outDir", cmd.Flags().Lookup("out"))
	_ = v.BindPFlag("language", cmd.Flags().Lookup("lang"))
	_ = v.BindPFlag("parallelism", cmd.Flags().Lookup("parallel"))
	p.Viper = v
}

func newGenerateCmd() *cobra.Command {
	var p cli.RunGenerateParams
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate every declaration of a model",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Out = cmd.OutOrStdout()
			return cli.RunGenerate(cmd.Context(), p)
		},
	}
	generateFlags(cmd, config.NewViper(), &p)
	return cmd
}

func newWatchCmd() *cobra.Command {
	var p cli.RunGenerateParams
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate whenever the model changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Out = cmd.OutOrStdout()
			return cli.RunWatch(cmd.Context(), p, debounce)
		},
	}
	generateFlags(cmd, config.NewViper(), &p)
	cmd.Flags().DurationVar(&debounce, "debounce", cli.DefaultDebounce, "Quiet period before regenerating")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a model document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunValidate(cmd.Context(), model, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model document (yaml/json/toml)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newOpenAPICmd() *cobra.Command {
	var model, service string
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document of a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunOpenAPI(cmd.Context(), model, service, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model document (yaml/json/toml)")
	cmd.Flags().StringVarP(&service, "service", "s", "", "Service name")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}
