package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/dtclient/internal/constants"
)

// outputFormat returns the validated --output value.
func outputFormat() (string, error) {
	format := strings.ToLower(viper.GetString(outputKey))
	switch format {
	case "", constants.FormatTable:
		return constants.FormatTable, nil
	case constants.FormatJSON, constants.FormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrInvalidOutput, format)
	}
}

// render writes data as JSON or YAML, or calls table for the table format.
func render(w io.Writer, data interface{}, table func() error) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		return renderJSON(w, data)
	case constants.FormatYAML:
		return renderYAML(w, data)
	default:
		return table()
	}
}

func renderJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}

	return nil
}

func renderYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(constants.JSONIndentSize)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}

	return encoder.Close()
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)

	cells := make([]interface{}, len(header))
	for i, name := range header {
		cells[i] = name
	}

	table.Header(cells...)

	for _, row := range rows {
		_ = table.Append(row)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// renderEmpty prints the "No X found" line used by every list command.
func renderEmpty(w io.Writer, what string) error {
	_, err := fmt.Fprintf(w, "No %s found\n", what)

	return err
}

func truncate(value string) string {
	if len(value) <= constants.StringTruncationLength {
		return value
	}

	return value[:constants.StringTruncationLength-3] + "..."
}

func orNone(value string) string {
	if value == "" {
		return constants.None
	}

	return value
}

// formatLabels renders labels as sorted key=value pairs.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return constants.None
	}

	pairs := make([]string, 0, len(labels))
	for key, value := range labels {
		pairs = append(pairs, key+"="+value)
	}

	sort.Strings(pairs)

	return truncate(strings.Join(pairs, ","))
}

// parseLabels parses key=value arguments.
func parseLabels(args []string) (map[string]string, error) {
	labels := make(map[string]string, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidLabel, arg)
		}

		labels[key] = value
	}

	return labels, nil
}
