package main

import (
	"io"

	"github.com/goccy/go-json"
)

// emit prints v as indented JSON under --json and calls text otherwise.
func emit(w io.Writer, v any, text func(io.Writer) error) error {
	if !jsonOut {
		return text(w)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
