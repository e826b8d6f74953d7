// Command generate-config emits the artifacts derived from the Config
// struct: an example YAML file by default, the Go source holding every
// default value with -constants, or the config test fixtures with -testdata.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/vellumhq/vellum/internal/config"
)

func main() {
	constants := flag.Bool("constants", false, "Generate the defaults constants file instead of the example YAML")
	testdata := flag.Bool("testdata", false, "Generate the config package test fixtures")
	flag.Parse()

	switch {
	case *constants:
		out := "internal/config/config_generated_constants.go"
		if flag.NArg() > 0 {
			out = flag.Arg(0)
		}
		if err := writeConstants(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating constants: %v\n", err)
			os.Exit(1)
		}
		if out != "-" {
			fmt.Printf("Generated constants: %s\n", out)
		}

	case *testdata:
		dir := "internal/config/testdata"
		if flag.NArg() > 0 {
			dir = flag.Arg(0)
		}
		if err := writeTestdata(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating testdata: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated test fixtures in %s\n", dir)

	default:
		out := "config.example.yaml"
		if flag.NArg() > 0 {
			out = flag.Arg(0)
		}
		if err := writeExample(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
			os.Exit(1)
		}
		if out != "-" {
			fmt.Printf("Generated example config: %s\n", out)
		}
	}
}

func writeExample(outputFile string) error {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	header := "# Vellum Configuration Example\n# Copy this file to config.yaml and customize as needed\n\n"
	output := header + string(yamlData)

	if outputFile == "-" {
		fmt.Print(output)
		return nil
	}
	return os.WriteFile(outputFile, []byte(output), 0644)
}

// writeTestdata emits the fixtures the config tests load: the full defaults
// as a golden file, and a config with an unsupported version.
func writeTestdata(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	defaults := generatedHeader + string(yamlData)
	if err := os.WriteFile(filepath.Join(dir, "defaults.yaml"), []byte(defaults), 0644); err != nil {
		return err
	}

	invalid := generatedHeader + `version: "999"
site:
    name: Vellum
server:
    host: 0.0.0.0
    port: "12700"
`
	return os.WriteFile(filepath.Join(dir, "invalid_version.yaml"), []byte(invalid), 0644)
}

const generatedHeader = "# Code generated by cmd/generate-config; DO NOT EDIT.\n"

func writeConstants(outputFile string) error {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/generate-config; DO NOT EDIT.\n\n")
	buf.WriteString("package config\n\n")
	buf.WriteString("// Default values extracted from the Config struct tags. Regenerate with\n")
	buf.WriteString("// `go run ./cmd/generate-config -constants` after changing any default.\n")
	buf.WriteString("const (\n")
	collectDefaults(&buf, reflect.TypeOf(config.Config{}), "Default")
	buf.WriteString(")\n")

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if outputFile == "-" {
		fmt.Print(string(src))
		return nil
	}
	return os.WriteFile(outputFile, src, 0644)
}

// collectDefaults walks the struct depth-first so constants come out in
// declaration order. Fields without a default tag are skipped, which keeps
// secrets and deployment-specific values out of the generated file.
func collectDefaults(buf *bytes.Buffer, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			collectDefaults(buf, field.Type, prefix+field.Name)
			continue
		}

		def := field.Tag.Get("default")
		if def == "" {
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			fmt.Fprintf(buf, "%s%s = %q\n", prefix, field.Name, def)
		case reflect.Bool, reflect.Int, reflect.Float64:
			fmt.Fprintf(buf, "%s%s = %s\n", prefix, field.Name, def)
		}
	}
}
