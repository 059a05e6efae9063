// Package config defines the judged server configuration loaded from flags
// and environment variables.
package config

import (
	"os"
	"runtime"
	"time"

	"github.com/koding/multiconfig"
)

// Config defines judged server configuration
type Config struct {
	// server
	HTTPAddr    string `flagUsage:"specifies the http binding address" default:":8080"`
	MonitorAddr string `flagUsage:"specifies the metrics / debug binding address" default:":8081"`
	APIKey      string `flagUsage:"api key required in the x-api-key header (empty disables auth)"`

	// problem catalog
	ProblemsConf string `flagUsage:"problem catalog yaml file (empty uses the embedded catalog)"`

	// execution
	Parallelism int    `flagUsage:"control the # of concurrent sandbox executions (default equal to number of cpu)"`
	Runner      string `flagUsage:"isolation backend: process or docker" default:"process"`
	PythonBin   string `flagUsage:"python interpreter used by the process runner" default:"python3"`
	DockerImage string `flagUsage:"container image used by the docker runner" default:"python:3.12-alpine"`
	WorkDir     string `flagUsage:"base directory for per-request working directories" default:"/tmp/judged"`
	RunUID      int    `flagUsage:"run user code under this uid (process runner, <= 0 keeps current)" default:"1000"`
	RunGID      int    `flagUsage:"run user code under this gid (process runner, <= 0 keeps current)" default:"1000"`

	// limits
	ExecTimeout   time.Duration `flagUsage:"time limit enforced inside the isolation boundary" default:"5s"`
	WallTimeout   time.Duration `flagUsage:"supervisory wall clock limit enforced by the caller" default:"10s"`
	MemoryLimitMB int           `flagUsage:"memory cap for user code in MiB" default:"128"`
	OutputLimit   int64         `flagUsage:"max captured stdout / stderr bytes" default:"1048576"`

	// rate limit
	RateLimit  int           `flagUsage:"max execute requests per client per window (0 disables)" default:"30"`
	RateWindow time.Duration `flagUsage:"rate limit window" default:"1m"`
	GlobalRPS  float64       `flagUsage:"global execute requests per second (0 disables)"`

	// monitoring
	EnableDebug   bool `flagUsage:"enable debug endpoint"`
	EnableMetrics bool `flagUsage:"enable prometheus metrics endpoint"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from flag & environment variables
func (c *Config) Load() error {
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "JD",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "JD",
		},
	)
	if err := cl.Load(c); err != nil {
		return err
	}
	if os.Getpid() == 1 {
		c.Release = true
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	return nil
}
