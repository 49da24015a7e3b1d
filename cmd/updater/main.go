// Command updater is the host-side CLI around package clientupdater: a
// one-shot check, a one-shot apply, or a foreground polling loop, for
// driving an installation from outside the client process itself.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IMQS/cli"
	"github.com/IMQS/log"

	clientupdater "github.com/IMQS/clientupdater"
	"github.com/IMQS/clientupdater/internal/config"
)

var logger *log.Logger

const pollInterval = 60 * time.Second

func loadUpdater(root string) (*clientupdater.Updater, error) {
	cfgPath := filepath.Join(root, "Resources", "UpdaterConfig.ini")
	legacyPath := filepath.Join(root, "updateconfig.ini")
	cfg, err := config.LoadWithFallback(cfgPath, legacyPath)
	if err != nil {
		return nil, err
	}
	// localGameVersion is read fresh from the local manifest on every
	// CheckForUpdates call; "unknown" here only seeds the Transport's
	// User-Agent string.
	return clientupdater.New(root, cfg, "Game", "unknown", "N/A", "1.0", nil, logger), nil
}

func doCheck(root string) error {
	upd, err := loadUpdater(root)
	if err != nil {
		return err
	}
	if err := upd.CheckForUpdates(context.Background()); err != nil {
		return err
	}
	fmt.Printf("state: %v\n", upd.State())
	if required, url := upd.ManualUpdateInfo(); required {
		fmt.Printf("manual update required: %v\n", url)
	}
	return nil
}

func doUpdate(root string) error {
	upd, err := loadUpdater(root)
	if err != nil {
		return err
	}
	if err := upd.CheckForUpdates(context.Background()); err != nil {
		return err
	}
	if upd.State() != clientupdater.StateOutdated {
		fmt.Printf("nothing to do, state: %v\n", upd.State())
		return nil
	}
	return upd.StartUpdate(context.Background())
}

func doRunLoop(root string) error {
	for {
		if err := doCheck(root); err != nil {
			logger.Errorf("check failed: %v", err)
		}
		time.Sleep(pollInterval)
	}
}

func run(name string, args []string, options cli.OptionSet) {
	var err error
	switch name {
	case "check":
		err = doCheck(args[0])
	case "update":
		err = doUpdate(args[0])
	case "run":
		err = doRunLoop(args[0])
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func main() {
	logger = log.New(log.Stdout)
	app := cli.App{}
	app.Description = "updater [options] command root-dir"
	app.DefaultExec = run
	app.AddCommand("check", "Check for updates against the configured mirrors", "root-dir")
	app.AddCommand("update", "Check for updates and apply them if outdated", "root-dir")
	app.AddCommand("run", "Run a foreground polling loop", "root-dir")
	app.Run()
}
