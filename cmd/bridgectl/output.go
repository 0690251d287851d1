package main

import (
	"encoding/json"
	"fmt"
	"io"

	"bridgeus/internal/utils/appinfo"

	"gopkg.in/yaml.v3"
)

// render writes v in the --output format. text uses the caller's formatter.
func render(w io.Writer, v interface{}, text func() string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "text", "":
		_, err := io.WriteString(w, text())
		return err
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func versionString() string {
	return fmt.Sprintf("%s %s", appinfo.Name, appinfo.GetVersion())
}
