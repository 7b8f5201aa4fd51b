package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/camcore/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CAMCORE_"

var durationType = reflect.TypeOf(time.Duration(0))

// option is one tagged field of an options struct.
type option struct {
	value reflect.Value
	flag  string
	toml  string
	env   string
}

// layer yields the raw value a configuration source holds for an option.
type layer func(o option) (any, bool)

// LoadConfig fills opts, a pointer to a flat options struct, from the TOML
// file named by its Config field and from CAMCORE_ environment variables.
// Later layers win; flags changed on cmd are never touched, so the order is
// CLI > env > file > defaults already in opts.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("options must be a pointer to a struct, got %T", opts)
	}
	fields := collectOptions(v.Elem())

	tree, err := readTree(configPath(v.Elem()))
	if err != nil {
		return err
	}

	pinned := changedFlags(cmd)
	for _, src := range []layer{fileLayer(tree), envLayer} {
		for _, o := range fields {
			if pinned[o.flag] {
				continue
			}
			if raw, ok := src(o); ok {
				setFieldValue(o.value, raw)
			}
		}
	}
	return nil
}

func collectOptions(v reflect.Value) []option {
	t := v.Type()
	out := make([]option, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		out = append(out, option{
			value: v.Field(i),
			flag:  fieldNameToFlag(f.Name),
			toml:  f.Tag.Get("toml"),
			env:   f.Tag.Get("env"),
		})
	}
	return out
}

func configPath(v reflect.Value) string {
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return ""
}

// readTree parses the config file into a generic table. A missing or
// unreadable file yields an empty tree; a malformed one is an error.
func readTree(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}
	return tree, nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	pinned := make(map[string]bool)
	if cmd == nil {
		return pinned
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			pinned[f.Name] = true
		}
	})
	return pinned
}

func fileLayer(tree map[string]any) layer {
	return func(o option) (any, bool) {
		if tree == nil || o.toml == "" {
			return nil, false
		}
		raw := getNestedValue(tree, o.toml)
		return raw, raw != nil
	}
}

func envLayer(o option) (any, bool) {
	if o.env == "" {
		return nil, false
	}
	raw := os.Getenv(EnvPrefix + o.env)
	return raw, raw != ""
}

// fieldNameToFlag turns a field name into its kebab-case flag name, keeping
// acronyms together: "LoggingLevel" is "logging-level" and "NATSToken" is
// "nats-token".
func fieldNameToFlag(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			acronymEnd := i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1])
			if prevLower || acronymEnd {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue walks a dotted path such as "camera.max_photos".
func getNestedValue(data map[string]any, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return data[head]
	}
	child, ok := data[head].(map[string]any)
	if !ok {
		return nil
	}
	return getNestedValue(child, rest)
}

// setFieldValue stores raw into field. TOML hands over typed values while
// the environment hands over strings; both are accepted for every kind.
// Values that do not fit the field leave it unchanged.
func setFieldValue(field reflect.Value, raw any) {
	if !field.CanSet() {
		return
	}
	if s, ok := raw.(string); ok && field.Kind() != reflect.String {
		setFromText(field, s)
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := raw.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			return
		}
		switch n := raw.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch n := raw.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		}
	case reflect.Slice:
		items, ok := raw.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

func setFromText(field reflect.Value, s string) {
	switch {
	case field.Type() == durationType:
		if d, err := time.ParseDuration(s); err == nil {
			field.SetInt(int64(d))
		}
	case field.Kind() == reflect.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			field.SetBool(b)
		}
	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			field.SetInt(n)
		}
	case field.Kind() == reflect.Float64:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			field.SetFloat(f)
		}
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
}

// LoadLoggingConfig is ReadLoggingConfig with errors folded into defaults.
func LoadLoggingConfig(path string) logging.Config {
	cfg, err := ReadLoggingConfig(path)
	if err != nil {
		return defaultLoggingConfig()
	}
	return cfg
}

// ReadLoggingConfig reads the [logging] table of a config file. "level" and
// "format" are global and any other key sets one module's level. Errors are
// reported so a watcher can keep the previous levels after a bad edit.
func ReadLoggingConfig(path string) (logging.Config, error) {
	cfg := defaultLoggingConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	var doc struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML: %w", err)
	}

	for key, level := range doc.Logging {
		switch key {
		case "level":
			cfg.Level = level
		case "format":
			cfg.Format = level
		default:
			cfg.Modules[key] = level
		}
	}
	return cfg, nil
}

func defaultLoggingConfig() logging.Config {
	return logging.Config{Level: "info", Format: "text", Modules: map[string]string{}}
}
