package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/quire/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultProjectFile is read from the working directory when --config is
// not given.
const DefaultProjectFile = "quire.yaml"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// options are the values shared by every command.
type options struct {
	format     string
	out        string
	workers    int
	cache      string
	logLevel   string
	logFormat  string
	configPath string
}

// projectFile is the YAML project configuration. Every field is a default
// that an explicit flag overrides.
type projectFile struct {
	Paths   []string `yaml:"paths"`
	Format  string   `yaml:"format"`
	Out     string   `yaml:"out"`
	Workers *int     `yaml:"workers"`
	Cache   string   `yaml:"cache"`
	Log     struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func addFlags(flags *pflag.FlagSet, o *options) {
	flags.StringVarP(&o.format, "format", "f", app.FormatText, "Output format. Options: 'text', 'json' or 'yaml'.")
	flags.StringVarP(&o.out, "out", "o", "", "Write output to a file instead of stdout.")
	flags.IntVarP(&o.workers, "workers", "w", 0, "Number of concurrent workers per pass. 0 uses one per CPU.")
	flags.StringVar(&o.cache, "cache", "", "Snapshot cache: a SQLite file path or ':memory:'. Empty disables it.")
	flags.StringVar(&o.logLevel, "log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.StringVar(&o.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	flags.StringVar(&o.configPath, "config", "", "Path to a YAML project file (default ./"+DefaultProjectFile+" if present).")
}

// loadProject reads the project file. A missing default file is not an
// error. Relative document paths are taken from the file's directory.
func loadProject(path string) (*projectFile, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultProjectFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &projectFile{}, nil
		}
		return nil, fmt.Errorf("failed to read project file '%s': %w", path, err)
	}
	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse project file '%s': %w", path, err)
	}
	for i, p := range pf.Paths {
		if !filepath.IsAbs(p) {
			pf.Paths[i] = filepath.Join(filepath.Dir(path), p)
		}
	}
	return &pf, nil
}

// merge applies project defaults to every flag the user did not set.
func merge(flags *pflag.FlagSet, o *options, pf *projectFile) {
	set := func(name string, dst *string, v string) {
		if v != "" && !flags.Changed(name) {
			*dst = v
		}
	}
	set("format", &o.format, pf.Format)
	set("out", &o.out, pf.Out)
	set("cache", &o.cache, pf.Cache)
	set("log-level", &o.logLevel, pf.Log.Level)
	set("log-format", &o.logFormat, pf.Log.Format)
	if pf.Workers != nil && !flags.Changed("workers") {
		o.workers = *pf.Workers
	}
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	var o options
	var cfg *app.Config

	build := func(cmd *cobra.Command, command string, paths []string, sel string) error {
		pf, err := loadProject(o.configPath)
		if err != nil {
			return usageError("%s", err)
		}
		merge(cmd.Flags(), &o, pf)
		if len(paths) == 0 {
			paths = pf.Paths
		}
		if len(paths) == 0 {
			return usageError("no document path given and none configured in the project file")
		}

		c, err := app.NewConfig(app.Config{
			Command:   command,
			Paths:     paths,
			Selector:  sel,
			Format:    strings.ToLower(o.format),
			OutPath:   o.out,
			Workers:   o.workers,
			CachePath: o.cache,
			LogFormat: strings.ToLower(o.logFormat),
			LogLevel:  strings.ToLower(o.logLevel),
		})
		if err != nil {
			return usageError("%s", err)
		}
		cfg = c
		return nil
	}

	root := &cobra.Command{
		Use:   "quire",
		Short: "Quire - a multi-pass document compiler.",
		Long: `Quire - a multi-pass document compiler.

Documents are HCL files. Content that depends on the finished layout, such
as page numbers, references and counters, is resolved by compiling the
document repeatedly until the output stops changing.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	addFlags(root.PersistentFlags(), &o)

	compileCmd := &cobra.Command{
		Use:   "compile [PATH ...]",
		Short: "Compile a document and print its pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd, app.CommandCompile, args, "")
		},
	}
	queryCmd := &cobra.Command{
		Use:   "query SELECTOR [PATH ...]",
		Short: "Compile a document and print the elements matching a selector",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd, app.CommandQuery, args[1:], args[0])
		},
	}
	root.AddCommand(compileCmd, queryCmd)

	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(output)
	root.SetErr(output)

	if err := root.Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if cfg == nil {
		slog.Debug("No command run, exiting.")
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "command", cfg.Command, "paths", cfg.Paths)
	return cfg, false, nil
}
