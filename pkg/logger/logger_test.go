package logger

import "testing"

func TestBuild(t *testing.T) {
	for _, opts := range []Options{
		{},
		{Level: "debug", Format: "console"},
		{Level: "warn", Service: "hrctl"},
	} {
		l, err := Build(opts)
		if err != nil {
			t.Fatalf("Build(%+v) error = %v", opts, err)
		}
		l.Named("test").WithChat("corr", "chat1", "101").Debug("built")
	}
}

func TestBuildRejectsUnknownLevel(t *testing.T) {
	if _, err := Build(Options{Level: "loud"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
