// sieve-run compiles a Sieve script and evaluates it against a message,
// executing the resulting event stream with logging. It is the reference
// host for the engine.
package main

import (
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/migadu/sievevm"
)

var (
	flagConfig string
	flagScript string
	flagEml    string
	flagFrom   string
	flagTo     string
	flagWatch  bool
	flagDebug  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sieve-run",
		Short: "Compile and run a Sieve script against a message",
		RunE:  run,
	}
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&flagScript, "script", "s", "", "script to run")
	rootCmd.Flags().StringVarP(&flagEml, "eml", "e", "", "message to process")
	rootCmd.Flags().StringVar(&flagFrom, "from", "", "envelope from")
	rootCmd.Flags().StringVar(&flagTo, "to", "", "envelope to")
	rootCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "recompile and rerun when the script changes")
	rootCmd.Flags().BoolVarP(&flagDebug, "debug", "d", false, "verbose logging")
	rootCmd.MarkFlagRequired("script")
	rootCmd.MarkFlagRequired("eml")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if flagDebug {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}
	dups, err := openDupStore(cfg.DuplicatesDB)
	if err != nil {
		return err
	}
	defer dups.Close()

	msg, err := os.ReadFile(flagEml)
	if err != nil {
		return err
	}

	h := &host{log: log, cfg: cfg, opts: sievevm.DefaultOptions(), dups: dups}
	rt := cfg.buildRuntime()

	once := func() error {
		script, err := os.Open(flagScript)
		if err != nil {
			return err
		}
		defer script.Close()

		start := time.Now()
		program, err := sievevm.Compile(script, h.opts)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"instructions": len(program.Instructions),
			"vars":         program.NumVars,
			"elapsed":      time.Since(start),
		}).Debug("script compiled")

		start = time.Now()
		if err := h.run(rt, program, msg, flagFrom, flagTo); err != nil {
			return err
		}
		log.WithField("elapsed", time.Since(start)).Debug("script executed")
		return nil
	}

	if err := once(); err != nil {
		if !flagWatch {
			return err
		}
		log.WithError(err).Error("run failed")
	}
	if !flagWatch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(flagScript); err != nil {
		return err
	}
	log.WithField("script", flagScript).Info("watching for changes")

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.WithField("script", flagScript).Info("script changed, rerunning")
			if err := once(); err != nil {
				log.WithError(err).Error("run failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("watch error")
		}
	}
}
