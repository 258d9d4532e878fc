package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default for terminal)
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatTable outputs as formatted table
	FormatTable OutputFormat = "table"
	// FormatRaw outputs raw data
	FormatRaw OutputFormat = "raw"
)

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json, table, raw)
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Indent is the indentation for JSON output
	Indent string

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer
}

// Output writes the result to the configured destination
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result, opts.Indent)
	case FormatYAML, "":
		return outputYAML(w, result)
	case FormatRaw:
		return outputRaw(w, result)
	case FormatTable:
		return outputTable(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputJSON(w io.Writer, result any, indent string) error {
	enc := json.NewEncoder(w)
	if indent == "" {
		indent = "  "
	}
	enc.SetIndent("", indent)
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputRaw(w io.Writer, result any) error {
	switch v := result.(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := w.Write([]byte(v))
		return err
	default:
		return outputYAML(w, result)
	}
}

// OutputBytes writes binary data to a file
func OutputBytes(data []byte, path string) error {
	if path == "" {
		return fmt.Errorf("output file path is required for binary data")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

// Print helpers for terminal output

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...any) {
	fmt.Printf("ℹ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...any) {
	fmt.Printf("⚠ "+format+"\n", args...)
}

// PrintVerbose prints verbose output to stderr
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// outputTable renders result as a colorized, column-aligned table: a row per
// slice element, a key/value line per struct field or map entry. Falls back
// to YAML for anything that isn't a struct, slice of structs, or map.
func outputTable(w io.Writer, result any) error {
	styles := NewStyles(DefaultTheme)

	v := reflect.ValueOf(result)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			fmt.Fprintln(w, "null")
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return outputTableRows(w, v, styles)
	case reflect.Map:
		return outputTablePairs(w, mapPairs(v), styles)
	case reflect.Struct:
		return outputTablePairs(w, structPairs(v), styles)
	default:
		return outputYAML(w, result)
	}
}

func fieldLabel(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func outputTableRows(w io.Writer, v reflect.Value, styles Styles) error {
	if v.Len() == 0 {
		fmt.Fprintln(w, "(no records)")
		return nil
	}

	elemType := v.Index(0).Type()
	for elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return outputYAML(w, v.Interface())
	}

	headers := make([]string, elemType.NumField())
	for i := range headers {
		headers[i] = fieldLabel(elemType.Field(i))
	}

	rows := make([][]string, v.Len())
	for i := range rows {
		elem := v.Index(i)
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		row := make([]string, elem.NumField())
		for j := range row {
			row[j] = fmt.Sprintf("%v", elem.Field(j).Interface())
		}
		rows[i] = row
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	pad := func(cells []string) string {
		padded := make([]string, len(cells))
		for i, c := range cells {
			padded[i] = c + strings.Repeat(" ", widths[i]-len(c))
		}
		return strings.Join(padded, "  ")
	}

	fmt.Fprintln(w, styles.Label.Render(pad(headers)))
	for _, row := range rows {
		fmt.Fprintln(w, pad(row))
	}
	return nil
}

func outputTablePairs(w io.Writer, pairs [][2]string, styles Styles) error {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	for _, p := range pairs {
		label := styles.Label.Render(p[0] + strings.Repeat(" ", width-len(p[0])))
		fmt.Fprintf(w, "%s  %s\n", label, p[1])
	}
	return nil
}

func mapPairs(v reflect.Value) [][2]string {
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })
	pairs := make([][2]string, len(keys))
	for i, k := range keys {
		pairs[i] = [2]string{fmt.Sprint(k.Interface()), fmt.Sprintf("%v", v.MapIndex(k).Interface())}
	}
	return pairs
}

func structPairs(v reflect.Value) [][2]string {
	t := v.Type()
	pairs := make([][2]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if !v.Field(i).CanInterface() {
			continue
		}
		pairs = append(pairs, [2]string{fieldLabel(t.Field(i)), fmt.Sprintf("%v", v.Field(i).Interface())})
	}
	return pairs
}
