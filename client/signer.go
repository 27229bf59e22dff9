package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"

	"github.com/apas-port/harvestflow-go/txbuild"
)

// Signer turns an unsigned transaction into a signed, submittable one.
// Key material never enters this module; implementations delegate to an
// external holder of the keys.
type Signer interface {
	Sign(ctx context.Context, unsigned *txbuild.Unsigned) ([]byte, error)
}

// CommandSigner signs by invoking an external command. The unsigned body
// is written to the command's stdin as hex; the command prints the signed
// transaction as hex on stdout.
type CommandSigner struct {
	Path string
	Args []string
}

// NewCommandSigner creates a signer invoking the command at path with the
// given fixed arguments.
func NewCommandSigner(path string, args ...string) *CommandSigner {
	return &CommandSigner{Path: path, Args: args}
}

// Sign runs the signing command.
func (s *CommandSigner) Sign(ctx context.Context, unsigned *txbuild.Unsigned) ([]byte, error) {
	if unsigned == nil {
		return nil, fmt.Errorf("%w: unsigned transaction", ErrNilParam)
	}

	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Stdin = strings.NewReader(hex.EncodeToString(unsigned.BodyCBOR))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w: %s", ErrSigner, s.Path, err,
			strings.TrimSpace(stderr.String()))
	}

	signed, err := hex.DecodeString(strings.TrimSpace(stdout.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s produced non-hex output: %w", ErrSigner, s.Path, err)
	}
	if len(signed) == 0 {
		return nil, fmt.Errorf("%w: %s produced empty output", ErrSigner, s.Path)
	}
	return signed, nil
}

var _ Signer = (*CommandSigner)(nil)
