package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mhpenta/imageloop"
	"gopkg.in/yaml.v3"
)

func validateOutputFormat(format string) error {
	switch format {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("--output must be json or yaml, got %q", format)
	}
}

// writeReport prints the loop report in the requested format.
func writeReport(w io.Writer, report *imageloop.LoopReport, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	}
}
