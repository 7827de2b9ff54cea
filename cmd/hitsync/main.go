package main

import (
	"os"

	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/osutil"
	"github.com/function61/hitsync/pkg/hitclient"
	"github.com/function61/hitsync/pkg/hitrepo"
	"github.com/function61/hitsync/pkg/hitserver"
	"github.com/function61/hitsync/pkg/hitwatcher"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     os.Args[0],
		Short:   "hitsync: content-addressed file sync with crash-safe history",
		Version: dynversion.Version,
		// hide the default "completion" subcommand from polluting UX (it can still be used)
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	}

	rootCmd.AddCommand(hitrepo.Entrypoint())
	rootCmd.AddCommand(hitwatcher.Entrypoint())
	rootCmd.AddCommand(hitserver.Entrypoint())
	rootCmd.AddCommand(hitclient.Entrypoint())

	osutil.ExitIfError(rootCmd.Execute())
}
