// Package disasm supplies the disassembly-line collaborators the core
// Function Extractor consumes: an ordered sequence of line strings
// structured as function sections. Two independent backends
// implement the same LineStream shape — an in-process decoder for the
// architectures this project has a Go decoder for, and an external
// objdump invocation for the rest — so the core recognizer never has to
// know which one produced a given line.
package disasm

// SliceStream is a LineStream over an in-memory slice of lines. The
// native backend builds its output into one before handing it to the
// extractor (ExternalStream reads objdump's output directly instead);
// tests use it directly to feed synthetic fixtures.
type SliceStream struct {
	lines []string
	pos   int
}

// NewSliceStream wraps lines as a LineStream.
func NewSliceStream(lines []string) *SliceStream {
	return &SliceStream{lines: lines}
}

// Next implements frame.LineStream.
func (s *SliceStream) Next() (string, bool) {
	if s.pos >= len(s.lines) {
		return "", false
	}
	line := s.lines[s.pos]
	s.pos++
	return line, true
}

// Lines returns the remaining backing slice, letting callers concatenate
// several SliceStreams (one per ELF section, say) into one before handing
// it to the extractor.
func (s *SliceStream) Lines() []string {
	return s.lines[s.pos:]
}
