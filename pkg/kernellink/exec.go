package kernellink

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/switchorch/pkg/log"
)

// execTimeout bounds a single `ip` invocation, the same guard
// health/exec.go's ExecChecker puts around a command run on the host.
const execTimeout = 10 * time.Second

// ExecLink is the production Link, shelling out to the `ip` binary the
// way VrfMgr's constructor and doTask do via swss::exec.
type ExecLink struct {
	// Binary overrides the `ip` binary path, for tests that want to
	// point at a recording stub instead of a real binary.
	Binary string
}

// NewExecLink returns a Link that shells out to the system `ip` binary.
func NewExecLink() *ExecLink {
	return &ExecLink{Binary: "ip"}
}

func (l *ExecLink) bin() string {
	if l.Binary != "" {
		return l.Binary
	}
	return "ip"
}

func (l *ExecLink) run(ctx context.Context, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, l.bin(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.WithComponent("kernellink").Error().
			Strs("args", args).
			Str("stderr", stderr.String()).
			Err(err).
			Msg("ip command failed")
		return "", fmt.Errorf("kernellink: %s %v: %w: %s", l.bin(), args, err, stderr.String())
	}
	return stdout.String(), nil
}

func (l *ExecLink) AddLink(ctx context.Context, name, linkType string, attrs map[string]string) error {
	exists, err := l.LinkExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	args := []string{"link", "add", name, "type", linkType}
	for k, v := range attrs {
		args = append(args, k, v)
	}
	if _, err := l.run(ctx, args...); err != nil {
		return err
	}
	_, err = l.run(ctx, "link", "set", name, "up")
	return err
}

func (l *ExecLink) DelLink(ctx context.Context, name string) error {
	_, err := l.run(ctx, "link", "del", name)
	return err
}

func (l *ExecLink) LinkExists(ctx context.Context, name string) (bool, error) {
	_, err := l.run(ctx, "link", "show", name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (l *ExecLink) SetMaster(ctx context.Context, name, master string) error {
	if master == "" {
		_, err := l.run(ctx, "link", "set", name, "nomaster")
		return err
	}
	_, err := l.run(ctx, "link", "set", name, "master", master)
	return err
}

func (l *ExecLink) AddAddr(ctx context.Context, name, cidr string) error {
	_, err := l.run(ctx, "addr", "add", cidr, "dev", name)
	return err
}

func (l *ExecLink) DelAddr(ctx context.Context, name, cidr string) error {
	_, err := l.run(ctx, "addr", "del", cidr, "dev", name)
	return err
}

// ExistingVRFs parses `ip -d link show type vrf`, matching VrfMgr's
// constructor: the output alternates a link line, a MAC line, and a
// details line per VRF, and the details line's 7th whitespace-separated
// field is the bound kernel routing table.
func (l *ExecLink) ExistingVRFs(ctx context.Context) (map[string]uint32, error) {
	out, err := l.run(ctx, "-d", "link", "show", "type", "vrf")
	if err != nil {
		return nil, err
	}

	found := make(map[string]uint32)
	lines := strings.Split(out, "\n")
	for i := 0; i+2 < len(lines); i += 3 {
		linkFields := strings.Fields(lines[i])
		if len(linkFields) < 2 {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSuffix(linkFields[1], ":"), "@NONE")

		detailFields := strings.Fields(lines[i+2])
		if len(detailFields) < 7 {
			continue
		}
		table, err := strconv.ParseUint(detailFields[6], 10, 32)
		if err != nil {
			continue
		}
		found[name] = uint32(table)
	}
	return found, nil
}
