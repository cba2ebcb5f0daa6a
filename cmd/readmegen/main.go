package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"readmegen/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals are the flags shared by every subcommand.
type globals struct {
	configFile string
	envFile    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "readmegen",
		Short:         "Generate a README.md for a project with an LLM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML config file (default "+config.DefaultFile+" if present)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file with API keys")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log pipeline details to stderr")

	root.AddCommand(newGenerateCmd(g))
	root.AddCommand(newServeCmd(g))
	root.AddCommand(newModelsCmd(g))
	root.AddCommand(newVersionCmd())
	return root
}

func (g *globals) load() (config.Config, error) {
	return config.Load(config.Options{File: g.configFile, EnvFile: g.envFile})
}

// logger writes to stderr so stdout stays clean for the README. Without
// --verbose only warnings get through.
func (g *globals) logger(cmd *cobra.Command) *log.Logger {
	if !g.verbose {
		return log.New(warningsOnly{w: cmd.ErrOrStderr()}, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

type warningsOnly struct{ w io.Writer }

func (f warningsOnly) Write(p []byte) (int, error) {
	if !bytes.HasPrefix(p, []byte("warning:")) {
		return len(p), nil
	}
	return f.w.Write(p)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the readmegen version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "readmegen %s\n", version)
		},
	}
}
