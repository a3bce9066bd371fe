package cmd

import (
	"github.com/spf13/cobra"
)

const banner = `
  _   _ _____ ____
 | \ | | ____|  _ \
 |  \| |  _| | | | |
 | |\  | |___| |_| |
 |_| \_|_____|____/

Thread Network Data Daemon
`

var CmdNetd = &cobra.Command{
	Use:   "netd",
	Short: "Thread Network Data Daemon",
	Long:  banner[1:],
}

func init() {
	cobra.EnableCommandSorting = false
	CmdNetd.Root().CompletionOptions.HiddenDefaultCmd = true
	CmdNetd.PersistentFlags().BoolP("help", "h", false, "Print usage")
	CmdNetd.PersistentFlags().Lookup("help").Hidden = true

	CmdNetd.AddGroup(&cobra.Group{ID: "daemons", Title: "Daemons"})
	CmdNetd.AddCommand(cmdDaemon())

	CmdNetd.AddGroup(&cobra.Group{ID: "show", Title: "Network Data Tools"})
	CmdNetd.AddCommand(cmdShow())
}
