// Package app 基于 Cobra、Viper 与 Pflag 构建命令行应用。
//
// 配置来源按优先级从低到高依次为：YAML 配置文件、以应用名为前缀的环境变量
// （agriqa 的 http.addr 对应 AGRIQA_HTTP_ADDR）、显式传入的命令行参数。
// 配置文件中的字符串可以用 ${VAR} 或 $VAR 引用环境变量。
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kart-io/version"
	"github.com/spf13/cobra"

	"github.com/kart-io/agriqa/pkg/app/cliflag"
	"github.com/kart-io/agriqa/pkg/infra/config"
)

// usageColumns 帮助信息的换行宽度。
const usageColumns = 100

// RunFunc is called once options are loaded, completed and validated.
type RunFunc func() error

// App is a single-command application.
type App struct {
	name        string
	shortDesc   string
	description string
	options     CliOptions
	runFunc     RunFunc
	watch       func(w *config.Watcher)
	silence     bool
	noVersion   bool

	cmd    *cobra.Command
	config *configLoader
}

// Option configures an App.
type Option func(*App)

// WithName names the command, its config file and its environment prefix.
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

func WithShortDescription(desc string) Option {
	return func(a *App) { a.shortDesc = desc }
}

func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithSilence stops cobra from printing errors; the caller reports them.
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// WithNoVersion omits the --version flag.
func WithNoVersion() Option {
	return func(a *App) { a.noVersion = true }
}

// WithConfigWatch watches the loaded config file while the application
// runs. subscribe registers the components that react to changes. Nothing
// is watched when no file was found.
func WithConfigWatch(subscribe func(w *config.Watcher)) Option {
	return func(a *App) { a.watch = subscribe }
}

// NewApp creates the application and its command.
func NewApp(opts ...Option) *App {
	a := &App{name: filepath.Base(os.Args[0])}
	for _, opt := range opts {
		opt(a)
	}
	a.config = newConfigLoader(a.name)
	a.cmd = a.newCommand()
	return a
}

func (a *App) newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.shortDesc,
		Long:          a.description,
		Args:          cobra.NoArgs,
		RunE:          func(cmd *cobra.Command, _ []string) error { return a.run(cmd) },
		SilenceUsage:  true,
		SilenceErrors: a.silence,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	pfs := cmd.PersistentFlags()
	pfs.StringP("config", "c", "", "Path to config file")
	pfs.BoolP("help", "h", false, "Help for "+a.name)
	if !a.noVersion {
		version.AddFlags(pfs)
	}

	if a.options == nil {
		return cmd
	}
	fss := a.options.Flags()
	fss.AddTo(cmd.Flags())
	fss.FlagSet("global").AddFlagSet(pfs)

	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		fmt.Fprintf(cmd.OutOrStderr(), "Usage:\n  %s\n", cmd.UseLine())
		cliflag.PrintSections(cmd.OutOrStderr(), fss, usageColumns)
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n\nUsage:\n  %s\n", cmd.Long, cmd.UseLine())
		cliflag.PrintSections(cmd.OutOrStdout(), fss, usageColumns)
	})
	return cmd
}

func (a *App) run(cmd *cobra.Command) error {
	if !a.noVersion {
		version.PrintAndExitIfRequested()
	}

	path, _ := cmd.Flags().GetString("config")
	if err := a.config.load(cmd.Flags(), path, a.options); err != nil {
		return err
	}

	if a.options != nil {
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.watch != nil && a.config.fileLoaded {
		w := config.NewWatcher(a.config.v)
		a.watch(w)
		w.Start()
	}

	if a.runFunc == nil {
		return nil
	}
	return a.runFunc()
}

// Run executes the command and exits non-zero on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command exposes the cobra command, mostly for tests.
func (a *App) Command() *cobra.Command {
	return a.cmd
}
