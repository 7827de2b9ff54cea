package hitwatcher

import (
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hitsync/pkg/hitclient"
	"github.com/function61/hitsync/pkg/hitrepo"
	"github.com/function61/hitsync/pkg/objectstore"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	noReport := false

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watches the working tree and reports file changes to the server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			repoRoot := "."
			store := objectstore.New(
				hitrepo.ObjectsDir(repoRoot),
				logex.Prefix("objectstore", rootLogger))

			var conf *hitclient.ClientConfig
			if !noReport {
				conf = hitclient.ReadConfig()
			}

			watcher := New(repoRoot, store, conf, logex.Prefix("watcher", rootLogger))

			osutil.ExitIfError(watcher.Run(
				osutil.CancelOnInterruptOrTerminate(rootLogger)))
		},
	}

	cmd.Flags().BoolVarP(&noReport, "no-report", "", noReport, "Only store objects locally, don't report to the server")

	return cmd
}
