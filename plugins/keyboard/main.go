// Command keyboard is a plugin that presses a key or shortcut when a gesture
// is emitted. It uses AppleScript on macOS and xdotool elsewhere.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ayusman/mudra/internal/plugin"
)

// KeystrokeParams defines parameters for keystroke and shortcut actions.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// runner executes a command line.
type runner func(name string, args ...string) error

// modifiers maps modifier names to their AppleScript and xdotool spellings.
var modifiers = map[string][2]string{
	"command": {"command down", "super"},
	"cmd":     {"command down", "super"},
	"super":   {"command down", "super"},
	"option":  {"option down", "alt"},
	"alt":     {"option down", "alt"},
	"control": {"control down", "ctrl"},
	"ctrl":    {"control down", "ctrl"},
	"shift":   {"shift down", "shift"},
}

func main() {
	resp := handle(os.Stdin, runtime.GOOS, execRunner)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader, goos string, run runner) *plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return failure(fmt.Sprintf("failed to decode request: %v", err))
	}

	switch req.Action {
	case "keystroke", "shortcut":
		var p KeystrokeParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &p); err != nil {
				return failure(fmt.Sprintf("failed to parse params: %v", err))
			}
		}
		if p.Key == "" {
			return failure("key is required")
		}
		if req.Action == "shortcut" && len(p.Modifiers) == 0 {
			return failure("shortcut needs at least one modifier")
		}
		name, args, err := keystrokeCommand(goos, p)
		if err != nil {
			return failure(err.Error())
		}
		if err := run(name, args...); err != nil {
			return failure(fmt.Sprintf("%s for %s failed: %v", req.Action, req.Name, err))
		}
		return &plugin.Response{Success: true}
	default:
		return failure(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

// keystrokeCommand returns the command that presses p on goos.
func keystrokeCommand(goos string, p KeystrokeParams) (string, []string, error) {
	var mods []string
	idx := 1
	if goos == "darwin" {
		idx = 0
	}
	for _, m := range p.Modifiers {
		spell, ok := modifiers[strings.ToLower(m)]
		if !ok {
			return "", nil, fmt.Errorf("unknown modifier: %s", m)
		}
		mods = append(mods, spell[idx])
	}

	if goos == "darwin" {
		script := fmt.Sprintf(`tell application "System Events" to keystroke %q`, p.Key)
		if len(mods) > 0 {
			script += " using {" + strings.Join(mods, ", ") + "}"
		}
		return "osascript", []string{"-e", script}, nil
	}
	if goos == "windows" {
		return "", nil, errors.New("keyboard plugin is not supported on windows")
	}
	return "xdotool", []string{"key", strings.Join(append(mods, p.Key), "+")}, nil
}

func execRunner(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func failure(msg string) *plugin.Response {
	return &plugin.Response{Success: false, Error: msg}
}
