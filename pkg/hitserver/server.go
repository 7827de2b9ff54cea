// The server component: accepts change notices, sequences them durably,
// stores and serves content objects, and fans accepted changes out to
// event stream subscribers.
package hitserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/function61/gokit/jsonfile"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hitsync/pkg/changesequencer"
	"github.com/function61/hitsync/pkg/hitrepo"
	"github.com/function61/hitsync/pkg/hitserver/broadcast"
	"github.com/function61/hitsync/pkg/objectstore"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

const configFilename = "hitsync-config.json"

type ServerConfigFile struct {
	Addr    string `json:"addr"`
	RepoDir string `json:"repo_dir"`
}

func readServerConfigFile() (*ServerConfigFile, error) {
	scf := &ServerConfigFile{
		Addr:    "0.0.0.0:8888",
		RepoDir: ".",
	}

	if _, err := os.Stat(configFilename); os.IsNotExist(err) {
		return scf, nil // defaults are fine for a repo-local server
	}

	if err := jsonfile.Read(configFilename, scf, true); err != nil {
		return nil, err
	}

	return scf, nil
}

// serves until ctx is cancelled, then drains in-flight requests
func runServer(ctx context.Context, scf *ServerConfigFile, logger *log.Logger) error {
	logl := logex.Levels(logex.NonNil(logger))

	sequencer, err := changesequencer.NewWithJournal(
		hitrepo.JournalPath(scf.RepoDir),
		logex.Prefix("journal", logger))
	if err != nil {
		return fmt.Errorf("open journal (did you run init?): %v", err)
	}
	defer sequencer.Close()

	store := objectstore.New(
		hitrepo.ObjectsDir(scf.RepoDir),
		logex.Prefix("objectstore", logger))

	hub := broadcast.NewHub(logex.Prefix("broadcast", logger))

	router := mux.NewRouter()

	defineRestApi(
		router,
		sequencer,
		store,
		hub,
		newMetricsController(),
		logex.Prefix("restapi", logger))

	srv := http.Server{
		Addr:    scf.Addr,
		Handler: router,
	}

	serverFailed := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			serverFailed <- err
		}
	}()

	logl.Info.Printf("listening on http://%s", scf.Addr)

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-serverFailed:
		return err
	}
}

func Entrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the change ingestion & broadcast server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			scf, err := readServerConfigFile()
			osutil.ExitIfError(err)

			osutil.ExitIfError(runServer(
				osutil.CancelOnInterruptOrTerminate(rootLogger),
				scf,
				rootLogger))
		},
	}
}
