package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/wikisync/internal/apperr"
)

func TestHistory_JournalDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	var buf bytes.Buffer
	if err := History(context.Background(), &buf, cfg, ""); !errors.Is(err, apperr.ErrJournalDisabled) {
		t.Errorf("err = %v, want ErrJournalDisabled", err)
	}
}

func TestHistory_NoRuns(t *testing.T) {
	cfg := testConfig(t)
	var buf bytes.Buffer
	if err := History(context.Background(), &buf, cfg, ""); err != nil {
		t.Fatalf("History: %v", err)
	}
	if !strings.Contains(buf.String(), "no runs recorded") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestHistory_AfterRun(t *testing.T) {
	cfg := testConfig(t)
	if err := Run(context.Background(), WithConfig(cfg)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var buf bytes.Buffer
	if err := History(context.Background(), &buf, cfg, ""); err != nil {
		t.Fatalf("History: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"links removed 1, added 1",
		"removed  [gone](/x/gone)",
		"added    [beta](/x/beta)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := History(context.Background(), &buf, cfg, "gone"); err != nil {
		t.Fatalf("History(gone): %v", err)
	}
	if !strings.Contains(buf.String(), "removed  [gone](/x/gone)") {
		t.Errorf("target history = %q", buf.String())
	}
}
