package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"ctt/internal/bootstrap/logging"
	"ctt/internal/errs"
)

// Config is read once at process start and passed by value to every component.
type Config struct {
	App       AppConfig           `mapstructure:"app"`
	Log       LogConfig           `mapstructure:"log"`
	Database  DatabaseConfig      `mapstructure:"database"`
	Cluster   ClusterConfig       `mapstructure:"cluster"`
	Tracker   TrackerConfig       `mapstructure:"tracker"`
	Topology  TopologyConfig      `mapstructure:"topology"`
	Scheduler SchedulerConfig     `mapstructure:"scheduler"`
	Metrics   MetricsConfig       `mapstructure:"metrics"`
	Groups    map[string][]string `mapstructure:"groups"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ClusterConfig struct {
	Name string `mapstructure:"name"`
}

type TrackerConfig struct {
	// Enforcement gates every drain/resume sent to the scheduler.
	Enforcement     bool     `mapstructure:"enforcement"`
	MaxIssuesOpen   int      `mapstructure:"max_issues_open"`
	MaxIssuesRun    int      `mapstructure:"max_issues_run"`
	AutoSeverity    int      `mapstructure:"auto_severity"`
	DefaultSeverity int      `mapstructure:"default_severity"`
	StrictNodes     []string `mapstructure:"strict_nodes"`
	AutoNodes       []string `mapstructure:"auto_nodes"`
	AttachLocation  string   `mapstructure:"attach_location"`
}

type TopologyConfig struct {
	SlotsPerIru            int    `mapstructure:"slots_per_iru"`
	NodesPerBlade          int    `mapstructure:"nodes_per_blade"`
	AlternatePrefix        string `mapstructure:"alternate_prefix"`
	AlternateNodesPerBlade int    `mapstructure:"alternate_nodes_per_blade"`
}

type SchedulerConfig struct {
	Profile        string `mapstructure:"profile"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("cluster", cfg.Cluster.Name),
		slog.Bool("enforcement", cfg.Tracker.Enforcement),
		slog.Int("groups", len(cfg.Groups)),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ctt")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "ctt.sqlite?_pragma=busy_timeout(5000)")
	v.SetDefault("cluster.name", "cluster")
	v.SetDefault("tracker.enforcement", false)
	v.SetDefault("tracker.max_issues_open", 0)
	v.SetDefault("tracker.max_issues_run", 10)
	v.SetDefault("tracker.auto_severity", 3)
	v.SetDefault("tracker.default_severity", 3)
	v.SetDefault("tracker.attach_location", "")
	v.SetDefault("topology.slots_per_iru", 9)
	v.SetDefault("topology.nodes_per_blade", 4)
	v.SetDefault("topology.alternate_prefix", "la")
	v.SetDefault("topology.alternate_nodes_per_blade", 2)
	v.SetDefault("scheduler.profile", "")
	v.SetDefault("scheduler.timeout_seconds", 30)
	v.SetDefault("metrics.textfile", "")
}

func (c *Config) normalize() {
	groups := make(map[string][]string, len(c.Groups))
	for name, users := range c.Groups {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		cleaned := make([]string, 0, len(users))
		for _, user := range users {
			if user = strings.TrimSpace(user); user != "" {
				cleaned = append(cleaned, user)
			}
		}
		groups[name] = cleaned
	}
	c.Groups = groups
	c.Tracker.StrictNodes = trimAll(c.Tracker.StrictNodes)
	c.Tracker.AutoNodes = trimAll(c.Tracker.AutoNodes)
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Tracker.MaxIssuesOpen < 0 {
		return fmt.Errorf("tracker.max_issues_open must be >= 0, got %d", c.Tracker.MaxIssuesOpen)
	}
	if c.Tracker.MaxIssuesRun < 0 {
		return fmt.Errorf("tracker.max_issues_run must be >= 0, got %d", c.Tracker.MaxIssuesRun)
	}
	for key, sev := range map[string]int{
		"tracker.auto_severity":    c.Tracker.AutoSeverity,
		"tracker.default_severity": c.Tracker.DefaultSeverity,
	} {
		if sev < 1 || sev > 4 {
			return fmt.Errorf("%s must be between 1 and 4, got %d", key, sev)
		}
	}
	if c.Topology.SlotsPerIru <= 0 || c.Topology.NodesPerBlade <= 0 || c.Topology.AlternateNodesPerBlade <= 0 {
		return errors.New("topology values must be positive")
	}
	return nil
}

// GroupNames returns the notification audience in a stable order.
func (c Config) GroupNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GroupOf returns the first group (by name) listing user.
func (c Config) GroupOf(user string) (string, bool) {
	for _, name := range c.GroupNames() {
		if slices.Contains(c.Groups[name], user) {
			return name, true
		}
	}
	return "", false
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
