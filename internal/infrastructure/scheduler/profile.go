package scheduler

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"ctt/internal/errs"
)

// Executor names understood by the profile.
const (
	ExecList    = "list"
	ExecDrain   = "drain"
	ExecResume  = "resume"
	ExecCleanup = "cleanup"
	ExecMarker  = "marker"
)

// ExecutorConfig is one command template. Args may use the placeholders
// {node} {admin} {pbsnodes} {clush} {marker} {nolocal}.
type ExecutorConfig struct {
	Program        string   `toml:"program"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Profile describes how ctt reaches the PBS admin host and the compute nodes.
type Profile struct {
	AdminHost      string                    `toml:"admin_host"`
	ClushPath      string                    `toml:"clush_path"`
	PbsnodesPath   string                    `toml:"pbsnodes_path"`
	MarkerPath     string                    `toml:"marker_path"`
	NolocalPath    string                    `toml:"nolocal_path"`
	TimeoutSeconds int                       `toml:"timeout_seconds"`
	Executors      map[string]ExecutorConfig `toml:"executors"`
}

func DefaultProfile() Profile {
	return Profile{
		AdminHost:    "localhost",
		ClushPath:    "/usr/bin/clush",
		PbsnodesPath: "/opt/pbs/bin/pbsnodes",
		MarkerPath:   "/etc/THIS_IS_A_BAD_NODE.ncar",
		NolocalPath:  "/etc/nolocal",
	}
}

// LoadProfile reads a TOML profile over the defaults. An empty path yields the defaults.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return Profile{}, errs.Wrapf(err, "read scheduler profile %q", trimmed)
	}
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, errs.Wrapf(err, "decode scheduler profile %q", trimmed)
	}
	if err := validateProfile(profile); err != nil {
		return Profile{}, errs.Wrapf(err, "scheduler profile %q", trimmed)
	}
	return profile, nil
}

func validateProfile(profile Profile) error {
	if strings.TrimSpace(profile.AdminHost) == "" {
		return errors.New("admin_host is required")
	}
	if profile.TimeoutSeconds < 0 {
		return errors.New("timeout_seconds must be >= 0")
	}
	for name, executor := range profile.Executors {
		switch name {
		case ExecList, ExecDrain, ExecResume, ExecCleanup, ExecMarker:
		default:
			return errors.New("unknown executor " + name)
		}
		if strings.TrimSpace(executor.Program) == "" {
			return errors.New("executors." + name + ".program is required")
		}
	}
	return nil
}

// builtinExecutors mirror the clush/pbsnodes invocations used on the admin host.
func builtinExecutors() map[string]ExecutorConfig {
	return map[string]ExecutorConfig{
		ExecList: {
			Program: "{clush}",
			Args:    []string{"-t30", "-Nw", "{admin}", "{pbsnodes}", "-av", "-Fdsv", "-D,"},
		},
		ExecDrain: {
			Program: "{clush}",
			Args:    []string{"-t30", "-w", "{admin}", "-qS", "-u120", "{pbsnodes} -o {node}"},
		},
		ExecResume: {
			Program: "{clush}",
			Args:    []string{"-t30", "-w", "{admin}", "-qS", "-u120", "{pbsnodes} -r -C '' {node}"},
		},
		ExecCleanup: {
			Program: "{clush}",
			Args:    []string{"-t30", "-w", "{node}", "[ -f {nolocal} ] && /usr/bin/unlink {nolocal} ; [ -f {marker} ] && /usr/bin/unlink {marker} ; true"},
		},
		ExecMarker: {
			Program: "{clush}",
			Args:    []string{"-t30", "-Nw", "{node}", "if [ -f {marker} ]; then cat {marker}; fi"},
		},
	}
}

// resolveExecutor picks the profile override or the built-in and fills in the timeout.
func (p Profile) resolveExecutor(name string, fallbackTimeout int) ExecutorConfig {
	executor, ok := p.Executors[name]
	if !ok {
		executor = builtinExecutors()[name]
	}
	executor.Program = strings.TrimSpace(executor.Program)

	switch {
	case executor.TimeoutSeconds > 0:
	case p.TimeoutSeconds > 0:
		executor.TimeoutSeconds = p.TimeoutSeconds
	case fallbackTimeout > 0:
		executor.TimeoutSeconds = fallbackTimeout
	default:
		executor.TimeoutSeconds = 30
	}
	return executor
}

// expand substitutes placeholders in program and args for one node.
func (p Profile) expand(executor ExecutorConfig, node string) (string, []string) {
	r := strings.NewReplacer(
		"{node}", node,
		"{admin}", p.AdminHost,
		"{pbsnodes}", p.PbsnodesPath,
		"{clush}", p.ClushPath,
		"{marker}", p.MarkerPath,
		"{nolocal}", p.NolocalPath,
	)
	args := make([]string, 0, len(executor.Args))
	for _, arg := range executor.Args {
		args = append(args, r.Replace(arg))
	}
	return r.Replace(executor.Program), args
}
