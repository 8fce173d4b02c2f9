package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"saltyrtc/internal/config"
	"saltyrtc/internal/domain"
	"saltyrtc/internal/log"
	"saltyrtc/internal/relay"
	identitysvc "saltyrtc/internal/services/identity"
	sessionsvc "saltyrtc/internal/services/session"
	trustsvc "saltyrtc/internal/services/trust"
	"saltyrtc/internal/store"
)

const trustDBName = "trust.db"

// Wire bundles the configuration, stores and services for the CLI.
type Wire struct {
	Config   *config.Config
	Logs     *log.Backend
	Identity domain.IdentityService
	Trust    domain.TrustService
	Sessions *sessionsvc.Service

	trustDB *store.TrustDB
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	conf, err := loadConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(conf.Client.DataDir, 0o700); err != nil {
		return nil, err
	}

	logs, err := log.New(conf.Logging.File, conf.Logging.Level, conf.Logging.Disable)
	if err != nil {
		return nil, err
	}

	// File and bbolt backed stores
	identityStore := store.NewIdentityFileStore(conf.Client.DataDir)
	trustDB, err := store.OpenTrustDB(filepath.Join(conf.Client.DataDir, trustDBName))
	if err != nil {
		logs.Close()
		return nil, err
	}

	// WebSocket settings, optionally through the upstream proxy
	dial, err := conf.UpstreamProxy.DialContext()
	if err != nil {
		trustDB.Close()
		logs.Close()
		return nil, err
	}
	rc := relay.Config{
		URL:              conf.Server.URL,
		CAFile:           conf.Server.CAFile,
		HandshakeTimeout: time.Duration(conf.Server.HandshakeTimeout) * time.Second,
		PingTimeout:      time.Duration(conf.Client.PingTimeout) * time.Second,
		DialContext:      dial,
	}

	return &Wire{
		Config:   conf,
		Logs:     logs,
		Identity: identitysvc.New(identityStore),
		Trust:    trustsvc.New(identityStore, trustDB),
		Sessions: sessionsvc.New(identityStore, trustDB, rc, conf.Server.Key(), logs),
		trustDB:  trustDB,
	}, nil
}

func loadConfig(cfg Config) (*config.Config, error) {
	var (
		conf *config.Config
		err  error
	)
	if cfg.ConfigFile != "" {
		conf, err = config.LoadFile(cfg.ConfigFile)
	} else {
		conf, err = config.Default()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Home != "" {
		conf.Client.DataDir = cfg.Home
	}
	if cfg.LogLevel != "" {
		if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		conf.Logging.Level = cfg.LogLevel
	}
	if cfg.PingInterval != nil {
		if err := conf.OverridePingInterval(*cfg.PingInterval); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// Close releases the stores and the log file.
func (w *Wire) Close() error {
	err := w.trustDB.Close()
	if lerr := w.Logs.Close(); err == nil {
		err = lerr
	}
	return err
}
