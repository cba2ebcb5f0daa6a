// Package config resolves readmegen settings from defaults, an optional YAML
// file, a .env file and the environment. CLI flags are applied by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"readmegen/internal/github"
	"readmegen/internal/llmclient"
	"readmegen/internal/prompt"
	"readmegen/internal/publish"
	"readmegen/internal/tree"
	t "readmegen/internal/types"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "readmegen.yaml"

// Config holds every tunable.
type Config struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// GroqAPIKey and GeminiAPIKey are normally supplied through the environment.
	GroqAPIKey   string `yaml:"groq_api_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	// LLMMaxAttempts bounds retries of rate-limited or failed completions.
	LLMMaxAttempts int `yaml:"llm_max_attempts"`

	Name           string `yaml:"name"`
	MaxFileSize    int64  `yaml:"max_file_size"`
	ExcerptChars   int    `yaml:"excerpt_chars"`
	MaxDepth       int    `yaml:"max_depth"`
	MaxPromptChars int    `yaml:"max_prompt_chars"`
	TreeStyle      string `yaml:"tree_style"`

	GitHubToken   string `yaml:"github_token"`
	GitHubAPIURL  string `yaml:"github_api_url"`
	GroqBaseURL   string `yaml:"groq_base_url"`
	GeminiBaseURL string `yaml:"gemini_base_url"`

	Port string   `yaml:"port"`
	S3   S3Config `yaml:"s3"`
}

// S3Config is the optional publish target.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether an endpoint was configured.
func (s S3Config) Enabled() bool { return strings.TrimSpace(s.Endpoint) != "" }

// Publish converts to the sink configuration.
func (s S3Config) Publish() publish.S3Config {
	return publish.S3Config{
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		UseSSL:    s.UseSSL,
	}
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Provider:       string(llmclient.ProviderGroq),
		LLMMaxAttempts: llmclient.DefaultMaxAttempts,
		MaxFileSize:    t.DefaultMaxFileSize,
		ExcerptChars:   prompt.DefaultExcerptLimit,
		MaxDepth:       github.DefaultMaxDepth,
		MaxPromptChars: 0,
		TreeStyle:      string(tree.StyleIndent),
		GitHubAPIURL:   github.DefaultAPIBase,
		GroqBaseURL:    llmclient.DefaultGroqURL,
		Port:           ":8080",
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "readmegen",
			UseSSL: true,
		},
	}
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit YAML path; it must exist. Empty tries DefaultFile.
	File string
	// EnvFile defaults to ".env"; a missing file is not an error.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load applies defaults, then the YAML file, then .env, then the environment.
// Real environment variables win over .env entries.
func Load(opts Options) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.File)
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg.applyEnv(func(key string) string {
		if v, ok := lookup(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[key])
	})
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(env func(string) string) {
	c.Provider = firstNonEmpty(env("READMEGEN_PROVIDER"), c.Provider)
	c.Model = firstNonEmpty(env("READMEGEN_MODEL"), c.Model)
	c.GroqAPIKey = firstNonEmpty(env("GROQ_API_KEY"), c.GroqAPIKey)
	c.GeminiAPIKey = firstNonEmpty(env("GEMINI_API_KEY"), c.GeminiAPIKey)
	c.Name = firstNonEmpty(env("READMEGEN_NAME"), c.Name)
	c.TreeStyle = firstNonEmpty(env("READMEGEN_TREE_STYLE"), c.TreeStyle)
	c.GitHubToken = firstNonEmpty(env("GITHUB_TOKEN"), c.GitHubToken)
	c.GitHubAPIURL = firstNonEmpty(env("GITHUB_API_URL"), c.GitHubAPIURL)
	c.GroqBaseURL = firstNonEmpty(env("GROQ_BASE_URL"), c.GroqBaseURL)
	c.GeminiBaseURL = firstNonEmpty(env("GEMINI_BASE_URL"), c.GeminiBaseURL)

	if n, ok := parseInt(env("READMEGEN_MAX_FILE_SIZE")); ok {
		c.MaxFileSize = int64(n)
	}
	if n, ok := parseInt(env("READMEGEN_EXCERPT_CHARS")); ok {
		c.ExcerptChars = n
	}
	if n, ok := parseInt(env("READMEGEN_MAX_DEPTH")); ok {
		c.MaxDepth = n
	}
	if n, ok := parseInt(env("READMEGEN_MAX_PROMPT_CHARS")); ok {
		c.MaxPromptChars = n
	}
	if n, ok := parseInt(env("READMEGEN_LLM_MAX_ATTEMPTS")); ok {
		c.LLMMaxAttempts = n
	}

	if port := env("PORT"); port != "" {
		c.Port = NormalizePort(port)
	}

	c.S3.Endpoint = firstNonEmpty(env("README_S3_ENDPOINT"), c.S3.Endpoint)
	c.S3.Region = firstNonEmpty(env("README_S3_REGION"), c.S3.Region)
	c.S3.AccessKey = firstNonEmpty(env("README_S3_ACCESS_KEY"), c.S3.AccessKey)
	c.S3.SecretKey = firstNonEmpty(env("README_S3_SECRET_KEY"), c.S3.SecretKey)
	c.S3.Bucket = firstNonEmpty(env("README_S3_BUCKET"), c.S3.Bucket)
	if raw := env("README_S3_USE_SSL"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			c.S3.UseSSL = v
		}
	}
}

// NormalizePort accepts "8080" or ":8080".
func NormalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || strings.Contains(p, ":") {
		return p
	}
	return ":" + p
}

// Validate rejects non-positive limits and unknown providers or styles.
func (c Config) Validate() error {
	var errs []error
	if _, err := llmclient.ParseProvider(c.Provider); err != nil {
		errs = append(errs, err)
	}
	switch tree.Style(strings.ToLower(strings.TrimSpace(c.TreeStyle))) {
	case "", tree.StyleIndent, tree.StyleBranches:
	default:
		errs = append(errs, fmt.Errorf("config: unknown tree_style %q", c.TreeStyle))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("config: max_file_size must be positive, got %d", c.MaxFileSize))
	}
	if c.ExcerptChars <= 0 {
		errs = append(errs, fmt.Errorf("config: excerpt_chars must be positive, got %d", c.ExcerptChars))
	}
	if c.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("config: max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.LLMMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("config: llm_max_attempts must be positive, got %d", c.LLMMaxAttempts))
	}
	if c.MaxPromptChars < 0 {
		errs = append(errs, fmt.Errorf("config: max_prompt_chars must not be negative, got %d", c.MaxPromptChars))
	}
	return errors.Join(errs...)
}

// LLM resolves the generator configuration for the selected provider.
func (c Config) LLM() llmclient.Config {
	p, err := llmclient.ParseProvider(c.Provider)
	if err != nil {
		p = llmclient.ProviderGroq
	}
	lc := llmclient.Config{Provider: p, Model: c.Model, MaxAttempts: c.LLMMaxAttempts}
	switch p {
	case llmclient.ProviderGemini:
		lc.APIKey = c.GeminiAPIKey
		lc.BaseURL = c.GeminiBaseURL
	default:
		lc.APIKey = c.GroqAPIKey
		lc.BaseURL = c.GroqBaseURL
	}
	return lc
}

// PromptBuilder returns the excerpt and budget settings.
func (c Config) PromptBuilder() prompt.Builder {
	return prompt.Builder{ExcerptLimit: c.ExcerptChars, MaxPromptChars: c.MaxPromptChars}
}

func parseInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
