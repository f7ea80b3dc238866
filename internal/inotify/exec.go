package inotify

import (
	"os"
	"os/exec"
	"strconv"
)

// Attach makes cmd inherit the channel. The child finds the descriptor
// number in EnvFD and adopts it with Inherited.
func (c *Channel) Attach(cmd *exec.Cmd) error {
	if !c.Valid() {
		return ErrInvalidChannel
	}

	// ExtraFiles[i] becomes descriptor 3+i in the child
	childFD := 3 + len(cmd.ExtraFiles)
	cmd.ExtraFiles = append(cmd.ExtraFiles, c.file)

	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, EnvFD+"="+strconv.Itoa(childFD))

	return nil
}
