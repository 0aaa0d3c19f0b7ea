package disasm

import (
	"bufio"
	"fmt"
	"os/exec"
)

// ExternalStream runs objdump against a binary and streams its stdout
// line by line: start the subprocess, hand back a scanner over its
// stdout, and let the caller drive it to completion.
type ExternalStream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	err     error
}

// NewExternalStream starts "<objdumpPath> -d <binaryPath>" and returns a
// stream over its disassembly output. objdumpPath may be a bare name
// resolved via $PATH or an absolute path.
func NewExternalStream(objdumpPath, binaryPath string) (*ExternalStream, error) {
	if objdumpPath == "" {
		objdumpPath = "objdump"
	}

	cmd := exec.Command(objdumpPath, "-d", binaryPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("disasm: objdump stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("disasm: start objdump: %w", err)
	}

	return &ExternalStream{cmd: cmd, scanner: bufio.NewScanner(stdout)}, nil
}

// Next implements frame.LineStream.
func (e *ExternalStream) Next() (string, bool) {
	if e.scanner.Scan() {
		return e.scanner.Text(), true
	}
	e.err = e.scanner.Err()
	if waitErr := e.cmd.Wait(); waitErr != nil && e.err == nil {
		e.err = fmt.Errorf("disasm: objdump: %w", waitErr)
	}
	return "", false
}

// Err returns any error observed once the stream is exhausted.
func (e *ExternalStream) Err() error {
	return e.err
}
