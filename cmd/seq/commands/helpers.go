package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/seq/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const timeFormat = "2006-01-02 15:04:05"

// outputFormat returns the configured output format.
func outputFormat() string {
	format := viper.GetString("output")
	if format == "" {
		return constants.FormatTable
	}

	return format
}

// writeOutput encodes value as JSON or YAML, or calls table to fill a table.
func writeOutput(out io.Writer, value interface{}, table func(*tablewriter.Table) error) error {
	switch outputFormat() {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(constants.JSONIndentSize)

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf("encoding YAML output: %w", err)
		}

		return encoder.Close()
	case constants.FormatTable:
		writer := tablewriter.NewWriter(out)

		err := table(writer)
		if err != nil {
			return err
		}

		err = writer.Render()
		if err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedOutput, outputFormat())
	}
}

// appendRows adds a header and one row per item.
func appendRows[T any](table *tablewriter.Table, header []string, items []T, row func(T) []string) error {
	table.Header(toAny(header)...)

	for _, item := range items {
		err := table.Append(toAny(row(item))...)
		if err != nil {
			return fmt.Errorf("appending table row: %w", err)
		}
	}

	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}

	return out
}

// parseValue converts a flag value to an integer when it looks like one.
func parseValue(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}

	return raw
}

// parseParams converts --param values to filter parameters.
func parseParams(raw []string) []interface{} {
	if len(raw) == 0 {
		return nil
	}

	params := make([]interface{}, 0, len(raw))
	for _, value := range raw {
		params = append(params, parseValue(value))
	}

	return params
}

// parseTags converts key=value pairs to a tag map.
func parseTags(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	tags := make(map[string]interface{}, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrTagsFormat, pair)
		}

		tags[key] = parseValue(value)
	}

	return tags, nil
}

// formatTags renders tags as sorted key=value pairs.
func formatTags(tags map[string]interface{}) string {
	if len(tags) == 0 {
		return ""
	}

	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, tags[key]))
	}

	return strings.Join(pairs, ", ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return constants.NotAvailable
	}

	return t.Local().Format(timeFormat)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// addTagFlag registers a repeatable key=value flag.
func addTagFlag(cmd *cobra.Command, target *[]string, name, usage string) {
	cmd.Flags().StringArrayVar(target, name, nil, usage+" (key=value, repeatable)")
}
