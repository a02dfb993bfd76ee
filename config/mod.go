// Package config loads the configuration of the daemon from the config.yaml
// file of the config folder. The environment variables STXDAPP_NETWORK and
// STXDAPP_API_URL override the network of both dApps.
//
// Documentation Last Review: 19.10.2026
//
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.flashlend.io/stxdapp/network"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

const (
	// FileName is the name of the configuration file in the config folder.
	FileName = "config.yaml"

	// EnvNetwork is the environment variable overriding the network.
	EnvNetwork = "STXDAPP_NETWORK"
	// EnvAPIURL is the environment variable overriding the node URL.
	EnvAPIURL = "STXDAPP_API_URL"
)

// App is the configuration of a dApp.
type App struct {
	Network  string `yaml:"network"`
	APIURL   string `yaml:"api_url"`
	Contract string `yaml:"contract"`
}

// Config is the configuration of the daemon.
type Config struct {
	// Network and APIURL, when set, apply to every dApp.
	Network string `yaml:"network"`
	APIURL  string `yaml:"api_url"`

	// PreferredNetwork is the network key tried first when resolving the
	// address of the session.
	PreferredNetwork string `yaml:"preferred_network"`
	Origin           string `yaml:"origin"`

	RateLimit         float64       `yaml:"rate_limit"`
	RateBurst         int           `yaml:"rate_burst"`
	DedupWindow       time.Duration `yaml:"dedup_window"`
	TrackInterval     time.Duration `yaml:"track_interval"`
	DashboardInterval time.Duration `yaml:"dashboard_interval"`

	FlashLend  App `yaml:"flashlend"`
	Prediction App `yaml:"prediction"`

	MetricsAddr string `yaml:"metrics_addr"`
	HistoryPath string `yaml:"history_path"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		PreferredNetwork:  network.TestnetName,
		RateLimit:         5,
		RateBurst:         5,
		DedupWindow:       2 * time.Second,
		TrackInterval:     10 * time.Second,
		DashboardInterval: 30 * time.Second,
		FlashLend: App{
			Network:  network.TestnetName,
			Contract: "SP2PABAF9FTAJYNFZH93XENAJ8FVY99RRM50D2JG9.flash-lend",
		},
		Prediction: App{
			Network: network.MainnetName,
		},
		MetricsAddr: "127.0.0.1:9100",
		HistoryPath: "history.db",
	}
}

// Load reads the configuration of the folder. A missing file is not an error
// and the defaults are used.
func Load(dir string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	switch {
	case err == nil:
		err = yaml.UnmarshalStrict(data, &cfg)
		if err != nil {
			return cfg, xerrors.Errorf("failed to parse %s: %v", FileName, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, xerrors.Errorf("failed to read %s: %v", FileName, err)
	}

	cfg.applyEnv()

	err = cfg.Validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid configuration: %v", err)
	}

	if cfg.HistoryPath != "" && !filepath.IsAbs(cfg.HistoryPath) {
		cfg.HistoryPath = filepath.Join(dir, cfg.HistoryPath)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if value := strings.TrimSpace(os.Getenv(EnvNetwork)); value != "" {
		c.Network = value
	}

	if value := strings.TrimSpace(os.Getenv(EnvAPIURL)); value != "" {
		c.APIURL = value
	}
}

// Validate returns an error if a value is out of range.
func (c Config) Validate() error {
	_, err := c.FlashLendNetwork()
	if err != nil {
		return xerrors.Errorf("flashlend: %v", err)
	}

	_, err = c.PredictionNetwork()
	if err != nil {
		return xerrors.Errorf("prediction: %v", err)
	}

	if c.RateLimit < 0 || c.RateBurst < 0 {
		return xerrors.New("rate limit must be positive")
	}

	if c.TrackInterval <= 0 || c.DashboardInterval <= 0 {
		return xerrors.New("intervals must be positive")
	}

	return nil
}

// FlashLendNetwork returns the network of the flash-loan dApp.
func (c Config) FlashLendNetwork() (network.Network, error) {
	return c.networkOf(c.FlashLend)
}

// PredictionNetwork returns the network of the prediction-market dApp.
func (c Config) PredictionNetwork() (network.Network, error) {
	return c.networkOf(c.Prediction)
}

// Limit returns the rate limit of the requests to the node. Zero disables the
// limit.
func (c Config) Limit() rate.Limit {
	if c.RateLimit == 0 {
		return rate.Inf
	}

	return rate.Limit(c.RateLimit)
}

func (c Config) networkOf(app App) (network.Network, error) {
	name := app.Network
	if c.Network != "" {
		name = c.Network
	}

	n, err := network.FromName(name)
	if err != nil {
		return n, err
	}

	url := app.APIURL
	if c.APIURL != "" {
		url = c.APIURL
	}

	if url != "" {
		n = n.WithAPIURL(url)
	}

	return n, nil
}
