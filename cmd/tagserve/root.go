package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bastiangx/tagserve/internal/logger"
	"github.com/bastiangx/tagserve/pkg/completion"
	"github.com/bastiangx/tagserve/pkg/config"
	"github.com/bastiangx/tagserve/pkg/index"
)

var (
	configPath  string
	debugMode   bool
	showVersion bool

	appConfig *config.Config
	// empty when running on built-in defaults
	loadedConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   AppName,
	Short: "Fast tag autocompletion over a delimited vocabulary file",
	Long: `TagServe indexes a tag vocabulary once per file content and serves
prefix completions with category and popularity metadata.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debugMode {
			log.SetLevel(log.DebugLevel)
			log.SetReportTimestamp(true)
		} else {
			log.SetLevel(log.WarnLevel)
		}
		cfg, used, err := config.LoadConfigWithPriority(configPath)
		if err != nil {
			return err
		}
		log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(used))
		appConfig = cfg
		loadedConfigPath = used
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion()
			return nil
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "toggle debug logging")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show current version")
}

// newProvider builds a Provider from the loaded config.
func newProvider(reg prometheus.Registerer) (*completion.Provider, error) {
	comp, err := index.ParseCompression(appConfig.Index.Compression)
	if err != nil {
		return nil, fmt.Errorf("config [index]: %w", err)
	}
	return completion.New(completion.Options{
		CacheRoot:        appConfig.Index.CacheRoot,
		Compression:      comp,
		Delimiter:        appConfig.Tags.DelimiterRune(),
		Logger:           newLogger("tags"),
		Registerer:       reg,
		RankByPopularity: appConfig.Search.RankByPopularity,
		FuzzyFallback:    appConfig.Search.FuzzyFallback,
	}), nil
}

// newLogger reports callers in debug mode.
func newLogger(prefix string) *log.Logger {
	if debugMode {
		return logger.NewWithConfig(prefix, log.DebugLevel, true, true, log.TextFormatter)
	}
	return logger.New(prefix)
}

// saveSource records src as [tags] source_path in the config file in use.
func saveSource(src string) error {
	if loadedConfigPath == "" {
		return fmt.Errorf("no config file to save the source into")
	}
	if err := appConfig.SetSource(loadedConfigPath, src); err != nil {
		return fmt.Errorf("save source: %w", err)
	}
	log.Infof("Saved source %s to %s", src, loadedConfigPath)
	return nil
}

// sourceArg picks the vocabulary path from args or the config.
func sourceArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if appConfig.Tags.SourcePath != "" {
		return appConfig.Tags.SourcePath, nil
	}
	return "", fmt.Errorf("no tag file given and [tags] source_path is empty")
}

func printVersion() {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ TagServe ] Serves really fast tag completions!")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}
