package input

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/jmylchreest/retrotoast/internal/model"
)

// maxLineSize bounds a single request, which may carry inline text only.
const maxLineSize = 1024 * 1024

// StdinAdapter reads JSON-lines requests, one object per line:
//
//	{"title":"Build finished","body":"all green","timeout":"10s"}
//	{"op":"close","id":"01HV..."}
//	{"op":"close_all"}
type StdinAdapter struct {
	reader io.Reader
	source string
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter() *StdinAdapter {
	return &StdinAdapter{reader: os.Stdin, source: "stdin"}
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader) *StdinAdapter {
	return &StdinAdapter{reader: r, source: "stdin"}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return a.source
}

// stdinEntry is the wire form of a request line.
type stdinEntry struct {
	Op      Op            `json:"op,omitempty"`
	Ref     string        `json:"ref,omitempty"`
	ID      string        `json:"id,omitempty"`
	AppName string        `json:"app_name,omitempty"`
	Title   string        `json:"title,omitempty"`
	Body    string        `json:"body,omitempty"`
	Icon    string        `json:"icon,omitempty"`
	Timeout model.Timeout `json:"timeout"`
	Silent  bool          `json:"silent,omitempty"`
	Sound   string        `json:"sound,omitempty"`
}

// Run decodes requests until EOF or ctx is cancelled. Each command is handed
// to fn; malformed lines go to onErr and reading continues. Run returns nil
// at EOF.
func (a *StdinAdapter) Run(ctx context.Context, fn func(Command), onErr func(error)) error {
	scanner := bufio.NewScanner(a.reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lines := make(chan []byte)
	done := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		done <- scanner.Err()
	}()

	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-done:
					if err != nil {
						return &AdapterError{Source: a.source, Line: lineNo, Message: "failed to read input", Err: err}
					}
				default:
				}
				return nil
			}
			lineNo++
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			cmd, err := a.decode(line, lineNo)
			if err != nil {
				if onErr != nil {
					onErr(err)
				}
				continue
			}
			fn(cmd)
		}
	}
}

// Decode parses a single request line.
func (a *StdinAdapter) Decode(line []byte) (Command, error) {
	return a.decode(line, 1)
}

func (a *StdinAdapter) decode(line []byte, lineNo int) (Command, error) {
	var entry stdinEntry
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entry); err != nil {
		return Command{}, &AdapterError{Source: a.source, Line: lineNo, Message: "failed to parse JSON input", Err: err}
	}
	return convertStdinEntry(entry, a.source, lineNo)
}

func convertStdinEntry(entry stdinEntry, source string, lineNo int) (Command, error) {
	cmd := Command{Op: entry.Op, Ref: entry.Ref}
	if cmd.Op == "" {
		cmd.Op = OpNotify
	}

	switch cmd.Op {
	case OpNotify:
		cmd.Notification = model.Notification{
			AppName:   sanitizeString(entry.AppName),
			Title:     sanitizeString(entry.Title),
			Body:      sanitizeString(entry.Body),
			Timeout:   entry.Timeout,
			Silent:    entry.Silent,
			SoundFile: entry.Sound,
		}
		cmd.IconPath = entry.Icon
		if err := cmd.Notification.Validate(); err != nil {
			return Command{}, &AdapterError{Source: source, Line: lineNo, Message: "invalid notification", Err: err}
		}
	case OpClose:
		if entry.ID == "" {
			return Command{}, &AdapterError{Source: source, Line: lineNo, Message: "close needs an id"}
		}
		cmd.ID = model.ID(entry.ID)
	case OpCloseAll:
	default:
		return Command{}, &AdapterError{Source: source, Line: lineNo, Message: "unknown op " + string(cmd.Op), Err: errors.ErrUnsupported}
	}
	return cmd, nil
}
