// Command tone is a plugin that maps gestures to the notes played by the
// receiver board's sine mixer.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/plugin"
)

// PlayParams tunes the play action.
type PlayParams struct {
	// Octave shifts the note up (positive) or down (negative).
	Octave int `json:"octave"`
}

// Note is returned in the response data.
type Note struct {
	Payload   string  `json:"payload"`
	Name      string  `json:"name"`
	Semitones int     `json:"semitones"`
	Frequency float64 `json:"frequency"`
}

func main() {
	resp := handle(os.Stdin)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader) *plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return failure(fmt.Sprintf("failed to decode request: %v", err))
	}

	p, err := gesture.ParsePayload(req.Payload)
	if err != nil {
		return failure(err.Error())
	}

	switch req.Action {
	case "play":
		var params PlayParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return failure(fmt.Sprintf("failed to parse params: %v", err))
			}
		}
		semitones, ok := p.Note()
		if !ok {
			return failure(fmt.Sprintf("no note for %s", p.Name()))
		}
		freq, _ := p.NoteFrequency()
		freq *= math.Pow(2, float64(params.Octave))
		return success(Note{Payload: string(p), Name: p.Name(), Semitones: semitones + 12*params.Octave, Frequency: freq})
	case "describe":
		return success(Note{Payload: string(p), Name: p.Name()})
	default:
		return failure(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func success(n Note) *plugin.Response {
	data, err := json.Marshal(n)
	if err != nil {
		return failure(err.Error())
	}
	return &plugin.Response{Success: true, Data: data}
}

func failure(msg string) *plugin.Response {
	return &plugin.Response{Success: false, Error: msg}
}
