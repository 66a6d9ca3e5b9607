// Command executor runs a command inside an isolated sandbox and
// reports its exit status, wall-clock time, peak memory and whether it
// was killed for exceeding its time budget.
//
// Usage: executor [flags] -- user_argv...
package main

import (
	"errors"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/library-checker-project/judge-executor/internal/judgelog"
	"github.com/library-checker-project/judge-executor/internal/sandbox"
)

// Re-exec dispatch happens before cobra ever sees argv: the supervisor
// and inner processes are spawned with a positional argv shape of
// their own (ending in a literal "--" followed by the *user's* argv,
// which may itself contain flag-like strings), so routing them through
// the same flag parser as the top-level command would be fragile.
// This mirrors the standard Go re-exec-dispatch idiom used by tools
// that need a privileged helper process (the same role the teacher's
// hidden "forkproxy"-style subcommands play, simplified here to a
// plain argv[1] sentinel check to sidestep that ambiguity).
func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "__supervisor":
			os.Exit(sandbox.RunSupervisor(os.Args))
		case "__inner":
			os.Exit(sandbox.RunInner(os.Args))
		}
	}

	os.Exit(run())
}

type cmdGlobal struct {
	flagDebug bool
}

func run() int {
	global := &cmdGlobal{}

	var (
		flagCwd     string
		flagOverlay bool
		flagTL      float64
		flagResult  string
		flagConfig  string
	)

	root := &cobra.Command{
		Use:   "executor -- user_argv...",
		Short: "Run a command inside an isolated, resource-limited sandbox",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global.flagDebug {
				judgelog.SetLevel(logrus.DebugLevel)
			}

			cfg := sandbox.Config{
				Workdir:      flagCwd,
				Overlay:      flagOverlay,
				TimeLimit:    flagTL,
				TimeLimitSet: cmd.Flags().Changed("tl"),
				ResultPath:   flagResult,
			}

			if flagConfig != "" {
				if err := applyConfigFile(flagConfig, &cfg, cmd.Flags()); err != nil {
					return err
				}
			}

			dashAt := cmd.ArgsLenAtDash()
			if dashAt < 0 {
				return errors.New("user command must follow a -- separator")
			}

			cfg.UserArgv = args[dashAt:]

			result, err := sandbox.Execute(cfg)
			if err != nil {
				var setupErr *sandbox.SetupError
				if errors.As(err, &setupErr) {
					logrus.WithField("kind", setupErr.Kind).Error(setupErr.Error())
				}

				return err
			}

			logrus.WithFields(logrus.Fields{
				"status": result.Status,
				"time":   result.Time,
				"memory": result.Memory,
				"tle":    result.TLE,
			}).Info("done")

			return nil
		},
	}

	root.SilenceUsage = true
	root.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	root.PersistentFlags().BoolVar(&global.flagDebug, "debug", false, "Enable debug logging")
	root.Flags().StringVar(&flagCwd, "cwd", ".", "Host directory to use as the user's workdir")
	root.Flags().BoolVar(&flagOverlay, "overlay", false, "Copy-on-write workdir instead of bind-mounting it read-write")
	root.Flags().Float64Var(&flagTL, "tl", sandbox.DefaultTimeLimitSeconds, "Time limit in seconds, [0, 3600]")
	root.Flags().StringVar(&flagResult, "result", "", "Write a JSON result to this path")
	root.Flags().StringVar(&flagConfig, "config", "", "Optional YAML file supplying defaults for the flags above")

	if err := root.Execute(); err != nil {
		return 1
	}

	return 0
}
