package submitloop

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// runTeardownCommand runs Configuration.teardown_command once on the
// submitter host after the whole run completes (spec §3, §4.4).
func runTeardownCommand(ctx context.Context, command string) error {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	return cmd.Run()
}
