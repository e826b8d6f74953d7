package config

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// The defaults golden file and the constants file are produced by
// cmd/generate-config; these tests catch drift between the generator
// output and ApplyDefaults.

func TestDefaultsGoldenFile(t *testing.T) {
	goldenData, err := os.ReadFile("testdata/defaults.yaml")
	if err != nil {
		t.Fatalf("Failed to read golden defaults: %v", err)
	}

	var golden Config
	if err := yaml.Unmarshal(goldenData, &golden); err != nil {
		t.Fatalf("Failed to parse golden defaults: %v", err)
	}

	fresh := &Config{}
	ApplyDefaults(fresh)

	// Comparing the marshaled forms covers every field without a hand
	// maintained list.
	want, err := yaml.Marshal(&golden)
	if err != nil {
		t.Fatalf("Failed to marshal golden config: %v", err)
	}
	got, err := yaml.Marshal(fresh)
	if err != nil {
		t.Fatalf("Failed to marshal defaults: %v", err)
	}

	if !bytes.Equal(want, got) {
		t.Errorf("Defaults drifted from testdata/defaults.yaml; regenerate with 'go run ./cmd/generate-config -testdata'.\n--- golden ---\n%s--- current ---\n%s", want, got)
	}
}

func TestGeneratedConstantsMatch(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Version", cfg.Version, DefaultVersion},
		{"Site.Name", cfg.Site.Name, DefaultSiteName},
		{"Server.Host", cfg.Server.Host, DefaultServerHost},
		{"Remote.Provider", cfg.Remote.Provider, DefaultRemoteProvider},
		{"Remote.TimeoutSeconds", cfg.Remote.TimeoutSeconds, DefaultRemoteTimeoutSeconds},
		{"Publish.DeferredDefault", cfg.Publish.DeferredDefault, DefaultPublishDeferredDefault},
		{"Publish.BlobBatchSize", cfg.Publish.BlobBatchSize, DefaultPublishBlobBatchSize},
		{"Content.SettingsPath", cfg.Content.SettingsPath, DefaultContentSettingsPath},
		{"Database.Path", cfg.Database.Path, DefaultDatabasePath},
		{"Theme.AllowSwitching", cfg.Theme.AllowSwitching, DefaultThemeAllowSwitching},
		{"Logging.Format", cfg.Logging.Format, DefaultLoggingFormat},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: defaults produce %v but the generated constant says %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadConfigTestdata(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	SetLogger(logger)

	testCases := []struct {
		name     string
		filename string
		wantErr  string
	}{
		{
			name:     "unsupported version is rejected",
			filename: "testdata/invalid_version.yaml",
			wantErr:  "unsupported configuration version",
		},
		{
			name:     "golden defaults load cleanly",
			filename: "testdata/defaults.yaml",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prev := AppConfig
			defer func() { AppConfig = prev }()

			err := LoadConfig(tc.filename)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("LoadConfig: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tc.wantErr, err)
			}
		})
	}
}

func TestGeneratedFilesPresent(t *testing.T) {
	if _, err := os.Stat("testdata/defaults.yaml"); err != nil {
		t.Error("testdata/defaults.yaml missing; run 'go run ./cmd/generate-config -testdata'")
	}
	if _, err := os.Stat("config_generated_constants.go"); err != nil {
		t.Error("config_generated_constants.go missing; run 'go run ./cmd/generate-config -constants'")
	}
}
