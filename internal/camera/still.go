package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"github.com/disintegration/imaging"
)

// DefaultStillCommand captures one JPEG from a Raspberry Pi camera module to stdout.
var DefaultStillCommand = []string{"raspistill", "-n", "-t", "1", "-e", "jpg", "-o", "-"}

// Still runs an external still-capture command for every frame and decodes
// the image it writes to stdout.
type Still struct {
	Command string
	Args    []string
}

func NewStill(command string, args []string) *Still {
	if command == "" {
		command, args = DefaultStillCommand[0], DefaultStillCommand[1:]
	}
	return &Still{Command: command, Args: args}
}

func (s *Still) Grab(ctx context.Context) (image.Image, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %v: %s", s.Command, err, strings.TrimSpace(stderr.String()))
	}
	return imaging.Decode(&stdout)
}

func (s *Still) Close() error { return nil }
