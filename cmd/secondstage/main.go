// Command secondstage is the second-stage bootstrap binary: invoked by
// the host client right before it exits, it takes the bootstrap lock,
// pauses for a second, mirrors the staged update over the live
// installation, and relaunches the client. It does not observe the
// host's exit itself.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/IMQS/clientupdater/internal/secondstage"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: second_stage <client_executable_name> <base_directory>")
		os.Exit(1)
	}
	clientExe := os.Args[1]
	baseDir := strings.Trim(os.Args[2], `"`)

	logDir := filepath.Join(baseDir, "Client")
	os.MkdirAll(logDir, 0o775)

	var fileWriter io.Writer
	if f, err := os.OpenFile(filepath.Join(logDir, "SecondStageUpdater.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		fileWriter = f
		defer f.Close()
	}

	log := secondstage.NewLogger(os.Stdout, fileWriter)

	if err := secondstage.Run(clientExe, baseDir, log); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
