package jsonout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Enabled is set to true when --json flag is active.
var Enabled bool

// msgOut is where human progress messages are written.
// When --json is active, this is io.Discard; when serving MCP on stdio it
// is io.Discard as well. Otherwise, this is os.Stdout.
var msgOut io.Writer = os.Stdout

// dataOut receives machine-readable documents.
var dataOut io.Writer = os.Stdout

// redact is applied to every document before it is written.
var redact = func(s string) string { return s }

// SetMsgOut sets the writer for human progress messages.
func SetMsgOut(w io.Writer) {
	msgOut = w
}

// MsgOut returns the writer for human progress messages.
// Commands should use fmt.Fprintf(jsonout.MsgOut(), ...) instead of fmt.Printf
// for any human-readable output that should be suppressed in JSON mode.
func MsgOut() io.Writer {
	return msgOut
}

// SetDataOut sets the writer used by Write.
func SetDataOut(w io.Writer) {
	dataOut = w
}

// SetRedactor installs a filter applied to all JSON output.
func SetRedactor(fn func(string) string) {
	if fn == nil {
		fn = func(s string) string { return s }
	}
	redact = fn
}

// Write marshals v as indented JSON to the data writer.
func Write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(dataOut, redact(string(data)))
	return err
}

// WriteError writes a structured JSON error to stderr.
func WriteError(code, msg string, exitCode int) {
	v := struct {
		Error    string `json:"error"`
		Code     string `json:"code"`
		ExitCode int    `json:"exit_code"`
	}{
		Error:    redact(msg),
		Code:     code,
		ExitCode: exitCode,
	}
	data, _ := json.Marshal(v)
	fmt.Fprintln(os.Stderr, string(data))
}
