package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainctt "ctt/internal/domain/ctt"
)

type call struct {
	program string
	args    []string
	timeout time.Duration
}

type fakeRunner struct {
	calls  []call
	output map[string]string
	fail   map[string]error
}

func (f *fakeRunner) Run(_ context.Context, program string, args []string, timeout time.Duration) ([]byte, error) {
	f.calls = append(f.calls, call{program: program, args: args, timeout: timeout})
	joined := strings.Join(args, " ")
	for needle, err := range f.fail {
		if strings.Contains(joined, needle) {
			return nil, err
		}
	}
	for needle, out := range f.output {
		if strings.Contains(joined, needle) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

const listing = `Name=r1i0n0,Mom=r1i0n0,Port=15002,pbs_version=19.1,ntype=PBS,state=free,resources_available.ncpus=36
Name=r1i0n1,Mom=r1i0n1,Port=15002,pbs_version=19.1,ntype=PBS,state=down,offline,comment=node down: mom not responding
Name=r1i0n2,Mom=r1i0n2,Port=15002,pbs_version=19.1,ntype=PBS,state=state-unknown,down,comment=a=b
garbage line
`

func TestParseNodeStates(t *testing.T) {
	records := ParseNodeStates([]byte(listing))
	require.Len(t, records, 3)

	assert.Equal(t, "r1i0n0", records[0].Node)
	assert.Equal(t, "free", records[0].State)
	assert.False(t, records[0].HasComment)

	assert.Equal(t, "down", records[1].State)
	assert.Equal(t, "offline", records[1].SecondaryFlags)
	assert.True(t, records[1].HasComment)
	assert.Equal(t, "node down: mom not responding", records[1].Comment)

	assert.Equal(t, "state-unknown", records[2].State)
	assert.Equal(t, "a=b", records[2].Comment, "comment splits on the first = only")
}

func TestQueryNodeStatesUsesBuiltinListCommand(t *testing.T) {
	runner := &fakeRunner{output: map[string]string{"-Fdsv": listing}}
	pbs := NewPBS(Profile{
		AdminHost: "pbsadmin", ClushPath: "/usr/bin/clush", PbsnodesPath: "/opt/pbs/bin/pbsnodes",
	}, runner, 45)

	records, err := pbs.QueryNodeStates(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "/usr/bin/clush", runner.calls[0].program)
	assert.Equal(t, []string{"-t30", "-Nw", "pbsadmin", "/opt/pbs/bin/pbsnodes", "-av", "-Fdsv", "-D,"}, runner.calls[0].args)
	assert.Equal(t, 45*time.Second, runner.calls[0].timeout)
}

func TestQueryNodeStatesUnreachable(t *testing.T) {
	pbs := NewPBS(DefaultProfile(), &fakeRunner{fail: map[string]error{"-Fdsv": errors.New("exit 1")}}, 0)
	_, err := pbs.QueryNodeStates(context.Background())
	assert.ErrorIs(t, err, domainctt.ErrSchedulerUnreachable)

	pbs = NewPBS(DefaultProfile(), &fakeRunner{}, 0)
	_, err = pbs.QueryNodeStates(context.Background())
	assert.ErrorIs(t, err, domainctt.ErrSchedulerUnreachable, "empty output counts as unreachable")
}

func TestDrainAndResumeCommands(t *testing.T) {
	runner := &fakeRunner{}
	pbs := NewPBS(DefaultProfile(), runner, 0)
	ctx := context.Background()

	require.NoError(t, pbs.Drain(ctx, "r1i0n3"))
	require.NoError(t, pbs.Resume(ctx, "r1i0n3"))

	require.Len(t, runner.calls, 3)
	assert.Equal(t, "/opt/pbs/bin/pbsnodes -o r1i0n3", runner.calls[0].args[len(runner.calls[0].args)-1])
	assert.Equal(t, "/opt/pbs/bin/pbsnodes -r -C '' r1i0n3", runner.calls[1].args[len(runner.calls[1].args)-1])
	assert.Equal(t, []string{"-t30", "-w", "r1i0n3"}, runner.calls[2].args[:3])
	assert.Contains(t, runner.calls[2].args[3], "/usr/bin/unlink /etc/nolocal")
	assert.Contains(t, runner.calls[2].args[3], "/usr/bin/unlink /etc/THIS_IS_A_BAD_NODE.ncar")
	assert.Equal(t, 30*time.Second, runner.calls[0].timeout)
}

func TestResumeIgnoresMarkerCleanupFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"unlink": errors.New("ssh: no route")}}
	pbs := NewPBS(DefaultProfile(), runner, 0)

	assert.NoError(t, pbs.Resume(context.Background(), "r1i0n3"))
}

func TestDrainFailureIsReturned(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"-o r1i0n3": errors.New("exit 2")}}
	pbs := NewPBS(DefaultProfile(), runner, 0)

	err := pbs.Drain(context.Background(), "r1i0n3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drain r1i0n3")
}

func TestReadBadNodeMarker(t *testing.T) {
	ctx := context.Background()

	pbs := NewPBS(DefaultProfile(), &fakeRunner{output: map[string]string{"-Nw r1i0n3": " bad dimm slot 4\n"}}, 0)
	text, err := pbs.ReadBadNodeMarker(ctx, "r1i0n3")
	require.NoError(t, err)
	assert.Equal(t, "bad dimm slot 4", text)

	pbs = NewPBS(DefaultProfile(), &fakeRunner{}, 0)
	_, err = pbs.ReadBadNodeMarker(ctx, "r1i0n3")
	assert.ErrorIs(t, err, domainctt.ErrNoMarker)

	pbs = NewPBS(DefaultProfile(), &fakeRunner{fail: map[string]error{"r1i0n3": errors.New("timeout")}}, 0)
	_, err = pbs.ReadBadNodeMarker(ctx, "r1i0n3")
	assert.ErrorIs(t, err, domainctt.ErrMarkerReadFailed)
}

func TestLoadProfileOverridesExecutors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
admin_host = "chadmin1"
pbsnodes_path = "/usr/local/bin/pbsnodes"
timeout_seconds = 20

[executors.drain]
program = "/usr/local/bin/drain-node"
args = ["--host", "{node}", "--via", "{admin}"]
timeout_seconds = 5
`), 0o644))

	profile, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "chadmin1", profile.AdminHost)
	assert.Equal(t, "/usr/bin/clush", profile.ClushPath, "unset keys keep defaults")

	runner := &fakeRunner{}
	pbs := NewPBS(profile, runner, 60)
	require.NoError(t, pbs.Drain(context.Background(), "r2i1n7"))
	_, _ = pbs.QueryNodeStates(context.Background())

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "/usr/local/bin/drain-node", runner.calls[0].program)
	assert.Equal(t, []string{"--host", "r2i1n7", "--via", "chadmin1"}, runner.calls[0].args)
	assert.Equal(t, 5*time.Second, runner.calls[0].timeout)
	assert.Equal(t, "/usr/local/bin/pbsnodes", runner.calls[1].args[3])
	assert.Equal(t, 20*time.Second, runner.calls[1].timeout)
}

func TestLoadProfileRejectsUnknownExecutor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
admin_host = "chadmin1"
[executors.reboot]
program = "/sbin/reboot"
`), 0o644))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown executor reboot")
}

func TestLoadProfileEmptyPathUsesDefaults(t *testing.T) {
	profile, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), profile)
}
