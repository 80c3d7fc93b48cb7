// Command reportctl is the operator CLI for reg44go: seeding a database,
// exporting reports and draining the outbox without the API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xelth-com/reg44go/internal/config"
	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/logging"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/sync"
	"github.com/xelth-com/reg44go/internal/utils"
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Operate a reg44go installation",
	Long: `reportctl works directly on the remote and device-local stores.

Available subcommands:
  seed - Create an organization, an admin user and demo homes
  pdf  - Export a report as PDF
  push - Push pending local drafts to the remote store`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(seedCmd, pdfCmd, pushCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds the stores a subcommand works on
type env struct {
	cfg    *config.Config
	remote *database.DB
	local  *database.DB
	store  *localstore.Store
	engine *sync.SyncEngine
	flush  func()
}

func openEnv(withLocal bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	_, flush, err := logging.Install(cfg.Log)
	if err != nil {
		return nil, err
	}

	remote, err := database.Connect(cfg.Database)
	if err != nil {
		flush()
		return nil, fmt.Errorf("connect remote store: %w", err)
	}
	if err := remote.AutoMigrate(models.RemoteModels()...); err != nil {
		zap.L().Warn("⚠️ Migration warning", zap.Error(err))
	}
	e := &env{cfg: cfg, remote: remote, flush: flush}
	if !withLocal {
		return e, nil
	}

	identity, err := utils.LoadOrCreateDeviceIdentity(cfg.StateDir, cfg.InstanceID)
	if err != nil {
		e.close()
		return nil, err
	}
	local, err := database.OpenLocal(cfg.Local.Path)
	if err != nil {
		e.close()
		return nil, err
	}
	e.local = local
	if err := local.AutoMigrate(models.LocalModels()...); err != nil {
		e.close()
		return nil, err
	}
	e.store = localstore.New(local, cfg.Autosave.VersionLimit)
	e.engine = sync.NewSyncEngine(remote, e.store, sync.NewOutbox(local, identity.DeviceID), cfg.Sync, identity.DeviceID)
	return e, nil
}

func (e *env) close() {
	if e.local != nil {
		_ = e.local.Close()
	}
	if e.remote != nil {
		_ = e.remote.Close()
	}
	e.flush()
}
