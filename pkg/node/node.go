// Package node runs a ledger with the vault and rewards programs deployed,
// served over JSON-RPC.
package node

import (
	"context"
	"net/http"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/code-payments/sol-trust/pkg/app"
	pg "github.com/code-payments/sol-trust/pkg/database/postgres"
	"github.com/code-payments/sol-trust/pkg/ledger"
	"github.com/code-payments/sol-trust/pkg/ledger/accounts"
	memory_accounts "github.com/code-payments/sol-trust/pkg/ledger/accounts/memory"
	pebble_accounts "github.com/code-payments/sol-trust/pkg/ledger/accounts/pebble"
	postgres_accounts "github.com/code-payments/sol-trust/pkg/ledger/accounts/postgres"
	"github.com/code-payments/sol-trust/pkg/metrics"
	bankrewards_program "github.com/code-payments/sol-trust/pkg/program/bankrewards"
	soltrust_program "github.com/code-payments/sol-trust/pkg/program/soltrust"
	"github.com/code-payments/sol-trust/pkg/rpc"
)

const (
	StoreMemory   = "memory"
	StorePebble   = "pebble"
	StorePostgres = "postgres"
)

// Config is decoded from the app section of the process configuration.
type Config struct {
	Store string `mapstructure:"store"`

	PebbleDir string `mapstructure:"pebble_dir"`

	Postgres pg.Config `mapstructure:"postgres"`
}

var defaultConfig = Config{
	Store:     StoreMemory,
	PebbleDir: "soltrust-ledger",
}

// Node implements app.App.
type Node struct {
	log *logrus.Entry

	ledgerConfig  ledger.ConfigProvider
	rpcConfig     rpc.ConfigProvider
	vaultConfig   soltrust_program.ConfigProvider
	rewardsConfig bankrewards_program.ConfigProvider

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	closeStore func() error
	ledger     *ledger.Ledger
	server     *rpc.Server

	stopOnce   sync.Once
	shutdownCh chan struct{}
}

// New returns a node configured from the environment.
func New() *Node {
	return NewWithConfigs(
		ledger.WithEnvConfigs(),
		rpc.WithEnvConfigs(),
		soltrust_program.WithEnvConfigs(),
		bankrewards_program.WithEnvConfigs(),
	)
}

func NewWithConfigs(
	ledgerConfig ledger.ConfigProvider,
	rpcConfig rpc.ConfigProvider,
	vaultConfig soltrust_program.ConfigProvider,
	rewardsConfig bankrewards_program.ConfigProvider,
) *Node {
	return &Node{
		log:           logrus.StandardLogger().WithField("type", "node"),
		ledgerConfig:  ledgerConfig,
		rpcConfig:     rpcConfig,
		vaultConfig:   vaultConfig,
		rewardsConfig: rewardsConfig,
		closeStore:    func() error { return nil },
		shutdownCh:    make(chan struct{}),
	}
}

// Init implements app.App.Init
func (n *Node) Init(appConfig app.Config, metricsProvider *newrelic.Application) error {
	config := defaultConfig
	if err := mapstructure.Decode(appConfig, &config); err != nil {
		return errors.Wrap(err, "invalid app config")
	}

	n.ctx, n.cancel = context.WithCancel(metrics.WithNewRelicApp(context.Background(), metricsProvider))

	store, err := n.openStore(config)
	if err != nil {
		return err
	}

	vaultProgram, err := soltrust_program.New(n.ctx, n.vaultConfig)
	if err != nil {
		return errors.Wrap(err, "failed to initialize vault program")
	}
	rewardsProgram, err := bankrewards_program.New(n.ctx, n.rewardsConfig)
	if err != nil {
		return errors.Wrap(err, "failed to initialize rewards program")
	}

	n.ledger, err = ledger.New(n.ctx, store, n.ledgerConfig, ledger.WithPrograms(vaultProgram, rewardsProgram))
	if err != nil {
		return errors.Wrap(err, "failed to initialize ledger")
	}

	n.server = rpc.NewServer(n.ledger, n.rpcConfig)

	n.eg, _ = errgroup.WithContext(n.ctx)
	n.eg.Go(func() error {
		defer n.shutdown()
		return n.ledger.Run(n.ctx)
	})

	n.log.WithFields(logrus.Fields{
		"store":           config.Store,
		"vault_program":   vaultProgram.Id(),
		"rewards_program": rewardsProgram.Id(),
		"faucet":          n.ledger.Faucet(),
	}).Info("node initialized")

	return nil
}

func (n *Node) openStore(config Config) (accounts.Store, error) {
	switch config.Store {
	case StoreMemory:
		return memory_accounts.New(), nil
	case StorePebble:
		store, closeFunc, err := pebble_accounts.Open(config.PebbleDir)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open pebble store at %s", config.PebbleDir)
		}
		n.closeStore = closeFunc
		return store, nil
	case StorePostgres:
		db, err := pg.Open(n.ctx, &config.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to postgres")
		}
		if err := postgres_accounts.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		n.closeStore = db.Close
		return postgres_accounts.New(db), nil
	}
	return nil, errors.Errorf("unsupported store: %s", config.Store)
}

// Ledger returns the ledger, once initialized.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// HTTPHandler implements app.App.HTTPHandler
func (n *Node) HTTPHandler() http.Handler {
	return n.server.Handler()
}

// ShutdownChan implements app.App.ShutdownChan
func (n *Node) ShutdownChan() <-chan struct{} {
	return n.shutdownCh
}

// Stop implements app.App.Stop
func (n *Node) Stop() {
	n.shutdown()

	if n.cancel != nil {
		n.cancel()
	}
	if n.eg != nil {
		if err := n.eg.Wait(); err != nil {
			n.log.WithError(err).Warn("ledger stopped with error")
		}
	}

	if err := n.closeStore(); err != nil {
		n.log.WithError(err).Warn("failed to close store")
	}
	n.closeStore = func() error { return nil }
}

func (n *Node) shutdown() {
	n.stopOnce.Do(func() {
		close(n.shutdownCh)
	})
}
