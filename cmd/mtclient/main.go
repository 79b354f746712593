// Command mtclient wires the SDK's pieces together against one account,
// logs the account's balance and equity once the instance has synchronized,
// and then runs until interrupted. It exists to
// exercise the SDK end-to-end; application-level CLIs are out of scope for
// the core (§1), so this stays intentionally small.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mtclient/src/config"
	"mtclient/src/health"
	"mtclient/src/history"
	"mtclient/src/logger"
	"mtclient/src/syncengine"
	"mtclient/src/termstate"
	"mtclient/src/transport"
)

// -----------------------------------------------------------------------------

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	accountID := flag.String("account", "", "account reference to mirror")
	instanceIndex := flag.String("instance", "0", "instance index to synchronize")
	accountType := flag.String("account-type", "cloud-g2", "cloud-g1 or cloud-g2, controls hash stringification")
	flag.Parse()

	if *accountID == "" {
		fmt.Fprintln(os.Stderr, "mtclient: -account is required")
		os.Exit(1)
	}

	if err := run(*configPath, *accountID, *instanceIndex, *accountType); err != nil {
		fmt.Fprintf(os.Stderr, "mtclient: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func run(configPath, accountID, instanceIndex, accountType string) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(logger.ParseLevel(cfg.LogLevel), cfg.Name)

	store, err := history.New(&cfg.Storage, log.Named("history"))
	if err != nil {
		return fmt.Errorf("failed to initialize history storage: %w", err)
	}
	defer store.Close()

	mirror := termstate.NewManager()
	monitor := health.NewMonitor(&cfg.Health)
	monitor.Start(time.Duration(cfg.Health.SampleIntervalSeconds) * time.Second)
	defer monitor.Stop()

	transportClient := transport.NewClient(cfg.Domain, cfg.AuthToken, accountID, &cfg.Transport, log.Named("transport"))
	rpc := syncengine.NewRpcConnection(transportClient)
	historySink := history.NewSink(store, rpc, log.Named("history"))
	conn := syncengine.NewConnection(transportClient, log.Named("syncengine"), mirror, monitor, historySink)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := conn.Subscribe(ctx, instanceIndex); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	hashes := mirror.GetHashes(accountType, instanceIndex)
	if err := conn.Synchronize(ctx, instanceIndex, accountType, syncengine.Hashes{
		Specifications: hashes.Specifications,
		Positions:      hashes.Positions,
		Orders:         hashes.Orders,
	}); err != nil {
		log.Warning("initial synchronize attempt failed, retrying in background: %v", err)
	}

	if err := conn.WaitSynchronized(ctx, syncengine.WaitSynchronizedOptions{InstanceIndex: instanceIndex}); err != nil {
		return err
	}
	log.Info("instance %s synchronized", instanceIndex)

	if info, err := rpc.GetAccountInformation(ctx, instanceIndex); err != nil {
		log.Warning("getAccountInformation failed: %v", err)
	} else {
		log.Info("account %s: balance=%.2f equity=%.2f", info.Currency, info.Balance, info.Equity)
	}

	<-ctx.Done()
	return conn.Close()
}
