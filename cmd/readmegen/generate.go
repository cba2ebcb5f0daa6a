package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"readmegen/internal/config"
	"readmegen/internal/github"
	"readmegen/internal/llmclient"
	"readmegen/internal/pipeline"
	"readmegen/internal/publish"
	"readmegen/internal/source"
	"readmegen/internal/tree"
)

// overrides are config knobs that can also be set per invocation.
type overrides struct {
	provider       string
	model          string
	name           string
	treeStyle      string
	maxFileSize    int64
	excerptChars   int
	maxDepth       int
	maxPromptChars int
}

func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.provider, "provider", "", "LLM provider (groq, gemini)")
	f.StringVar(&o.model, "model", "", "model id (see `readmegen models`)")
	f.StringVar(&o.name, "name", "", "project name override")
	f.StringVar(&o.treeStyle, "tree-style", "", "structure diagram style (indent, branches)")
	f.Int64Var(&o.maxFileSize, "max-file-size", 0, "bytes above which file content is replaced by a placeholder")
	f.IntVar(&o.excerptChars, "excerpt-chars", 0, "characters kept from each key file")
	f.IntVar(&o.maxDepth, "max-depth", 0, "GitHub directory recursion limit")
	f.IntVar(&o.maxPromptChars, "max-prompt-chars", 0, "overall prompt budget (0 = unbounded)")
}

// apply copies only the flags the user actually set.
func (o *overrides) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.Provider = o.provider
	}
	if f.Changed("model") {
		cfg.Model = o.model
	}
	if f.Changed("name") {
		cfg.Name = o.name
	}
	if f.Changed("tree-style") {
		cfg.TreeStyle = o.treeStyle
	}
	if f.Changed("max-file-size") {
		cfg.MaxFileSize = o.maxFileSize
	}
	if f.Changed("excerpt-chars") {
		cfg.ExcerptChars = o.excerptChars
	}
	if f.Changed("max-depth") {
		cfg.MaxDepth = o.maxDepth
	}
	if f.Changed("max-prompt-chars") {
		cfg.MaxPromptChars = o.maxPromptChars
	}
}

// inputs are the mutually exclusive acquisition flags.
type inputs struct {
	dir    string
	zip    string
	github string
	token  string
	files  []string
}

func (in inputs) source() (source.Source, error) {
	set := 0
	for _, v := range []bool{in.dir != "", in.zip != "", in.github != "", len(in.files) > 0} {
		if v {
			set++
		}
	}
	if set != 1 {
		return nil, errors.New("exactly one of --dir, --zip, --github or --file is required")
	}

	switch {
	case in.dir != "":
		return source.Local{Path: in.dir}, nil
	case in.zip != "":
		data, err := os.ReadFile(in.zip)
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		return source.Archive{FileName: filepath.Base(in.zip), Data: data}, nil
	case in.github != "":
		return source.Remote{URL: in.github, Token: in.token}, nil
	default:
		uploads := make([]source.Upload, 0, len(in.files))
		for _, f := range in.files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("read file: %w", err)
			}
			uploads = append(uploads, source.Upload{Name: uploadName(f), Content: string(data)})
		}
		return source.Files{Uploads: uploads}, nil
	}
}

// uploadName keeps relative paths below the working directory and falls back
// to the base name otherwise.
func uploadName(p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return filepath.Base(clean)
	}
	return filepath.ToSlash(clean)
}

func sourceOptions(cfg config.Config, logger *log.Logger) source.Options {
	gh := github.NewClient(cfg.GitHubToken,
		github.WithAPIBase(cfg.GitHubAPIURL),
		github.WithMaxDepth(cfg.MaxDepth),
		github.WithMaxFileSize(cfg.MaxFileSize),
		github.WithLogger(logger),
	)
	return source.Options{
		ProjectName: cfg.Name,
		MaxFileSize: cfg.MaxFileSize,
		MaxDepth:    cfg.MaxDepth,
		GitHub:      gh,
		Logger:      logger,
	}
}

func pipelineOptions(cfg config.Config, logger *log.Logger) pipeline.Options {
	return pipeline.Options{
		TreeStyle: tree.ParseStyle(cfg.TreeStyle),
		Prompt:    cfg.PromptBuilder(),
		Logger:    logger,
	}
}

type generateFlags struct {
	in            inputs
	out           string
	s3            bool
	dryRun        bool
	printKeyFiles bool
}

func newGenerateCmd(g *globals) *cobra.Command {
	var (
		o  overrides
		gf generateFlags
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Collect a project, classify its key files and write a README",
		Long: `Generate a README.md from exactly one input.

Examples:
  readmegen generate --dir ./myproject
  readmegen generate --github https://github.com/owner/repo --out README.md
  readmegen generate --zip project.zip --provider gemini
  readmegen generate --file main.py --file requirements.txt --name demo
  readmegen generate --dir . --dry-run --print-keyfiles`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			o.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runGenerate(cmd, cfg, gf, g.logger(cmd))
		},
	}
	o.register(cmd)
	f := cmd.Flags()
	f.StringVar(&gf.in.dir, "dir", "", "local project directory")
	f.StringVar(&gf.in.zip, "zip", "", "ZIP archive of the project")
	f.StringVar(&gf.in.github, "github", "", "public GitHub repository URL")
	f.StringVar(&gf.in.token, "token", "", "GitHub token for this request (overrides GITHUB_TOKEN)")
	f.StringArrayVar(&gf.in.files, "file", nil, "individual file to include (repeatable)")
	f.StringVarP(&gf.out, "out", "o", "", "write the README to this path instead of stdout")
	f.BoolVar(&gf.s3, "s3", false, "also upload the README to the configured S3 bucket")
	f.BoolVar(&gf.dryRun, "dry-run", false, "print the prompt instead of calling the model")
	f.BoolVar(&gf.printKeyFiles, "print-keyfiles", false, "print the key-file classification as JSON to stderr")
	return cmd
}

func runGenerate(cmd *cobra.Command, cfg config.Config, gf generateFlags, logger *log.Logger) error {
	ctx := cmd.Context()
	src, err := gf.in.source()
	if err != nil {
		return err
	}

	sinks := []publish.Sink{publish.WriterSink{W: cmd.OutOrStdout()}}
	if gf.out != "" {
		sinks[0] = publish.NewFileSink(gf.out)
	}
	if gf.s3 && !gf.dryRun {
		if !cfg.S3.Enabled() {
			return errors.New("--s3 requires README_S3_ENDPOINT (or s3.endpoint in the config file)")
		}
		s3, err := publish.NewS3Sink(cfg.S3.Publish())
		if err != nil {
			return err
		}
		sinks = append(sinks, s3)
	}

	ro := pipeline.RunOptions{
		Source: sourceOptions(cfg, logger),
		Observer: func(ev pipeline.Event) {
			logger.Printf("[%3d%%] %s", ev.Percent, ev.Message)
		},
	}

	var (
		res *pipeline.Result
		doc string
	)
	if gf.dryRun {
		p, err := pipeline.New(nil, pipelineOptions(cfg, logger))
		if err != nil {
			return err
		}
		if res, err = p.Prepare(ctx, src, ro); err != nil {
			return err
		}
		doc = res.Prompt
	} else {
		lc := cfg.LLM()
		lc.Logger = logger
		gen, err := llmclient.New(ctx, lc)
		if err != nil {
			logger.Printf("warning: %v", err)
			gen = llmclient.Unavailable(err)
		}
		p, err := pipeline.New(llmclient.NewWriter(gen, logger), pipelineOptions(cfg, logger))
		if err != nil {
			return err
		}
		if res, err = p.Run(ctx, src, ro); err != nil {
			return err
		}
		doc = res.Readme
	}

	if gf.printKeyFiles {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.KeyFiles); err != nil {
			return err
		}
	}

	for _, sink := range sinks {
		loc, err := sink.Publish(ctx, res.Snapshot.Name(), []byte(doc))
		if err != nil {
			return err
		}
		if loc != "stdout" {
			fmt.Fprintf(cmd.ErrOrStderr(), "README written to %s\n", loc)
		}
	}

	if res.Fallback {
		return fmt.Errorf("README generation failed, wrote fallback document: %w", res.GenerationErr)
	}
	return nil
}
