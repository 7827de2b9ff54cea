package hitclient

import (
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hitsync/pkg/hitrepo"
	"github.com/function61/hitsync/pkg/objectstore"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Follows the server's change stream and applies changes locally",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			repoRoot := "."
			store := objectstore.New(
				hitrepo.ObjectsDir(repoRoot),
				logex.Prefix("objectstore", rootLogger))

			osutil.ExitIfError(Sync(
				osutil.CancelOnInterruptOrTerminate(rootLogger),
				ReadConfig(),
				store,
				repoRoot,
				logex.Prefix("sync", rootLogger)))
		},
	}
}
