package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/maruel/tbl/reliabletxt"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing optional", func(t *testing.T) {
		cfg, err := Load(filepath.Join(dir, FileName), true)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Format != FormatDefault || cfg.ChunkSize != 4096 || cfg.Validation.Concurrency != 4 {
			t.Errorf("Load() = %+v", cfg)
		}
	})

	t.Run("missing required", func(t *testing.T) {
		if _, err := Load(filepath.Join(dir, "other.yaml"), false); err == nil {
			t.Error("Load() succeeded on a missing file")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		path := filepath.Join(dir, "override.yaml")
		data := "format: aligned\nright_aligned: [false, true]\nencoding: utf-16le\nvalidate:\n  concurrency: 8\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path, false)
		if err != nil {
			t.Fatal(err)
		}
		enc, err := cfg.TextEncoding()
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Format != FormatAligned || len(cfg.RightAligned) != 2 || !cfg.RightAligned[1] || enc != reliabletxt.UTF16Reverse {
			t.Errorf("Load() = %+v", cfg)
		}
		if cfg.Validation.Concurrency != 8 || cfg.Watch.Burst != 1 || cfg.Null != "-" {
			t.Errorf("defaults lost: %+v", cfg)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			data string
			want string
		}{
			{"format: fancy\n", "format"},
			{"encoding: latin1\n", "encoding"},
			{"chunk_size: 0\n", "chunk_size"},
			{"validate:\n  concurrency: -1\n", "validate.concurrency"},
			{"watch:\n  rate_per_sec: 0\n", "watch.rate_per_sec"},
			{"watch:\n  burst: 0\n", "watch.burst"},
			{"format: [\n", "failed to parse"},
		}
		for _, tt := range tests {
			t.Run(tt.want, func(t *testing.T) {
				path := filepath.Join(dir, "invalid.yaml")
				if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
					t.Fatal(err)
				}
				_, err := Load(path, false)
				if err == nil || !strings.Contains(err.Error(), tt.want) {
					t.Errorf("Load() error = %v, want %q", err, tt.want)
				}
			})
		}
	})

	t.Run("save", func(t *testing.T) {
		path := filepath.Join(dir, "saved.yaml")
		cfg := Default()
		cfg.Format = FormatMinified
		if err := cfg.Save(path); err != nil {
			t.Fatal(err)
		}
		got, err := Load(path, false)
		if err != nil {
			t.Fatal(err)
		}
		if got.Format != FormatMinified || got.Encoding != "utf-8" {
			t.Errorf("Load() = %+v", got)
		}
	})
}
