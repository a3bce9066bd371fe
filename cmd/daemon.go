package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/openthread-go/netdata/netdata"
	"github.com/openthread-go/netdata/config"
	"github.com/openthread-go/netdata/debugserver"
	"github.com/openthread-go/netdata/dhcp6"
	"github.com/openthread-go/netdata/leasestore"
	"github.com/openthread-go/netdata/notify"
	"github.com/openthread-go/netdata/posixnet"
	"github.com/openthread-go/netdata/std/log"
	"github.com/openthread-go/netdata/std/utils/toolutils"
)

func cmdDaemon() *cobra.Command {
	return &cobra.Command{
		Use:     "daemon CONFIG-FILE",
		Short:   "Start the Thread Network Data daemon",
		GroupID: "daemons",
		Args:    cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			runDaemon(args[0])
		},
	}
}

// runDaemon wires the Network Data store through the change notifier to
// the DHCPv6 client and debug server, the way fw_executor/dv_executor
// assemble their own subsystems from a loaded config (cmd/daemon.go
// before this rewrite). There is no indirect.Sender here: it needs a
// real hostapi.MAC/hostapi.Forwarder backed by 802.15.4 radio hardware
// and an IPv6 forwarder this module does not carry, so it is left for a
// future hardware-specific daemon build to wire in.
func runDaemon(configFile string) {
	if _, err := maxprocs.Set(maxprocs.Logger(log.Infof)); err != nil {
		log.Warnf("daemon: automaxprocs: %v", err)
	}

	cfg := config.DefaultConfig()
	toolutils.ReadYaml(cfg, configFile)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("daemon: invalid config: %v", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("daemon: log_level: %v", err)
	}
	log.Default().SetLevel(level)

	eui64, _ := cfg.Eui64()
	meshLocalPrefix, _ := cfg.MeshLocalPrefixAddr()
	selfRloc16, _ := cfg.SelfRloc16Value()
	solicitMode, _ := cfg.DhcpSolicitMode()

	store := netdata.NewStore()
	notifier := notify.New()
	notifier.Watch(store)

	leases, err := leasestore.Open(cfg.LeaseDbPath)
	if err != nil {
		log.Fatalf("daemon: lease store: %v", err)
	}
	defer leases.Close()

	radio := posixnet.NewRadio(eui64)
	netif := posixnet.NewThreadNetif()
	mle := posixnet.NewMLE(meshLocalPrefix, netdata.Rloc16(selfRloc16))
	udp := posixnet.New(cfg.NetifName)

	trickle := dhcp6.NewTrickle()
	client := dhcp6.NewClient(radio, netif, udp, mle, trickle, dhcp6.WithSolicitMode(solicitMode))

	if err := client.Start(); err != nil {
		log.Fatalf("daemon: start DHCPv6 client: %v", err)
	}
	defer client.Stop()

	var debug *debugserver.Server
	if cfg.DebugListen != "" {
		debug = debugserver.New(cfg.DebugListen)
		if err := debug.Start(); err != nil {
			log.Fatalf("daemon: debug server: %v", err)
		}
		defer func() {
			if err := debug.Stop(context.Background()); err != nil {
				log.Warnf("daemon: stop debug server: %v", err)
			}
		}()
	}

	notifier.Subscribe(notify.FlagNetData, func(ev notify.Event) {
		q := netdata.NewQuery(store).WithSelfRloc16(netdata.Rloc16(selfRloc16))
		if err := client.UpdateAddresses(q); err != nil {
			log.Warnf("daemon: update addresses: %v", err)
			return
		}
		persistLeases(leases, client)
		if debug != nil {
			debug.PublishNetData(ev.Version, ev.StableVersion)
		}
	})

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
	<-sigchan
	log.Info("daemon: shutting down")
}

// persistLeases saves every IdentityAssociation with a non-zero
// ValidLifetime, mirroring leasestore's "lease database survives a
// restart" purpose; IAs still soliciting or invalidated are skipped, and
// any record saved for them earlier is left in the store.
func persistLeases(leases *leasestore.Store, client *dhcp6.Client) {
	for _, ia := range client.IdentityAssociations() {
		if ia.Status == dhcp6.IaStatusInvalid {
			continue
		}
		if ia.ValidLifetime == 0 {
			continue
		}
		if err := leases.Save(ia); err != nil {
			log.Warnf("daemon: persist lease for %v: %v", ia.Prefix, err)
		}
	}
}
