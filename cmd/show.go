package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/std/utils/toolutils"
)

func cmdShow() *cobra.Command {
	show := &cobra.Command{
		Use:     "show",
		Short:   "Inspect a Network Data blob offline",
		GroupID: "show",
	}
	show.AddCommand(cmdShowPrefixes())
	show.AddCommand(cmdShowServices())
	return show
}

func cmdShowPrefixes() *cobra.Command {
	return &cobra.Command{
		Use:   "prefixes FILE",
		Short: "List on-mesh prefixes and external routes in a Network Data blob",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			q, err := loadQuery(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}

			p := toolutils.StatusPrinter{File: os.Stdout, Padding: 12}

			onMesh, err := q.NextOnMeshPrefixAll()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading on-mesh prefixes: %v\n", err)
				return
			}
			for _, entry := range onMesh {
				fmt.Printf("on-mesh prefix %s/%d:\n", entry.Prefix.Addr, entry.Prefix.Length)
				p.Print("rloc16", fmt.Sprintf("%04x", uint16(entry.Rloc16)))
				p.Print("preference", entry.Preference)
				p.Print("dhcp", entry.Dhcp)
				p.Print("slaac", entry.Slaac)
				p.Print("stable", entry.Stable)
			}

			routes, err := q.NextExternalRouteAll()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading external routes: %v\n", err)
				return
			}
			for _, entry := range routes {
				fmt.Printf("external route %s/%d:\n", entry.Prefix.Addr, entry.Prefix.Length)
				p.Print("rloc16", fmt.Sprintf("%04x", uint16(entry.Rloc16)))
				p.Print("preference", entry.Preference)
				p.Print("nat64", entry.Nat64)
				p.Print("stable", entry.Stable)
			}
		},
	}
}

func cmdShowServices() *cobra.Command {
	return &cobra.Command{
		Use:   "services FILE",
		Short: "List services in a Network Data blob",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			q, err := loadQuery(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return
			}

			p := toolutils.StatusPrinter{File: os.Stdout, Padding: 18}

			services, err := q.NextServiceAll()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading services: %v\n", err)
				return
			}
			for _, s := range services {
				fmt.Printf("service %d:\n", s.ServiceID)
				p.Print("enterpriseNumber", s.EnterpriseNumber)
				p.Print("rloc16", fmt.Sprintf("%04x", uint16(s.Server.Rloc16)))
				p.Print("stable", s.Server.Stable)
			}
		},
	}
}

// loadQuery reads a raw Network Data byte image from path (use "-" for
// stdin) and builds a Query over it.
func loadQuery(path string) (*netdata.Query, error) {
	var buf []byte
	var err error
	if path == "-" {
		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	store := netdata.NewStore()
	if err := store.Replace(buf); err != nil {
		return nil, fmt.Errorf("decode network data: %w", err)
	}
	return netdata.NewQuery(store), nil
}
