package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hrdesk/hr-assistant/internal/model"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("hrctl %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestSeedThenSearch(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "hrctl.db"))
	t.Setenv("LOG_LEVEL", "error")

	execute(t, "migrate")

	if out := execute(t, "seed"); strings.Contains(out, "inserted 0 ") {
		t.Fatalf("first seed inserted nothing: %q", out)
	}
	if out := execute(t, "seed"); !strings.Contains(out, "inserted 0 ") {
		t.Fatalf("second seed should be a no-op, got %q", out)
	}

	var preview model.SearchPreview
	if err := json.Unmarshal([]byte(execute(t, "search", "как", "оформить", "отпуск")), &preview); err != nil {
		t.Fatalf("search output is not JSON: %v", err)
	}
	if !preview.Found || preview.Article == nil {
		t.Fatalf("expected a knowledge base hit, got %+v", preview)
	}
}

func TestRollupRejectsBadDate(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "hrctl.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { rollupDate, rollupDays = "", 1 })

	rootCmd.SetArgs([]string{"rollup", "--date", "yesterday"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected an error for a malformed date")
	}

	out := execute(t, "rollup", "--date", "2026-03-02", "--days", "2")
	if !strings.Contains(out, "2026-03-01") || !strings.Contains(out, "2026-03-02") {
		t.Fatalf("unexpected rollup output %q", out)
	}
}
