package cli

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/libpanel/internal/borrowing"
	"github.com/mesh-intelligence/libpanel/internal/config"
	"github.com/mesh-intelligence/libpanel/internal/logging"
	"github.com/mesh-intelligence/libpanel/internal/paths"
	"github.com/mesh-intelligence/libpanel/internal/rest"
	"github.com/mesh-intelligence/libpanel/internal/sqlite"
	"github.com/mesh-intelligence/libpanel/internal/table"
	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// now is the clock for new drafts and borrowings.
var now = time.Now

// environment is the configured client side of a command: config, logger
// and REST client.
type environment struct {
	cfg       types.Config
	configDir string
	logger    *zap.Logger
	client    *rest.Client
}

func loadEnvironment() (*environment, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, sysError("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:       cfg,
		configDir: configDir,
		logger:    logger,
		client:    rest.New(cfg, logger),
	}, nil
}

func (e *environment) close() {
	_ = e.logger.Sync()
}

func (e *environment) borrowing() *borrowing.Service {
	return borrowing.NewService(e.client, e.logger, now)
}

// session is an environment plus the persisted table controller.
type session struct {
	*environment
	store *sqlite.Store
	ctl   *table.Controller
}

// openSession loads the environment and restores the working session from
// the data directory. The caller must call close.
func openSession() (*session, error) {
	env, err := loadEnvironment()
	if err != nil {
		return nil, err
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, env.cfg.DataDir)
	if err != nil {
		env.close()
		return nil, sysError("resolve data dir: %w", err)
	}
	store := sqlite.NewStore()
	if err := store.Attach(dataDir); err != nil {
		env.close()
		return nil, sysError("open session: %w", err)
	}

	ctl := table.New(env.client, table.WithLogger(env.logger), table.WithClock(now))
	st, err := store.LoadState()
	if err == nil {
		err = ctl.Load(st)
	}
	if err != nil {
		store.Detach()
		env.close()
		return nil, sysError("restore session: %w", err)
	}

	env.logger.Debug("Session opened",
		zap.String("session_id", store.SessionID()),
		zap.String("data_dir", dataDir),
		zap.String("table", ctl.Table()),
	)
	return &session{environment: env, store: store, ctl: ctl}, nil
}

// close persists the controller state and releases the store. The state is
// saved even when the command failed, so recorded row errors survive.
func (s *session) close(cmdErr error) error {
	saveErr := s.store.SaveState(s.ctl.State())
	detachErr := s.store.Detach()
	if cmdErr != nil {
		if err := errors.Join(saveErr, detachErr); err != nil {
			s.logger.Warn("Session not saved", zap.Error(err))
		}
		s.environment.close()
		return cmdErr
	}
	s.environment.close()
	if err := errors.Join(saveErr, detachErr); err != nil {
		return sysError("save session: %w", err)
	}
	return nil
}

// withSession runs fn against an open session and saves it afterwards.
func withSession(fn func(s *session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	return s.close(fn(s))
}

// requireTable returns ErrNoTable with a hint when no table is selected.
func (s *session) requireTable() error {
	if s.ctl.Table() == "" {
		return fmt.Errorf("%w (run \"libpanel use <table>\")", types.ErrNoTable)
	}
	return nil
}
