package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/deixis/cmdline/internal/history"
	"github.com/deixis/cmdline/internal/runner"
)

func outcome(kind runner.Kind, id, text string) *runner.Outcome {
	return &runner.Outcome{RunID: id, Kind: kind, Text: text}
}

func TestFormatAttempts(t *testing.T) {
	attempts := []runner.Attempt{
		{Target: "local", Outcome: outcome(runner.KindOutput, "r1", "hello\n")},
		{Target: "build", Outcome: outcome(runner.KindError, "r2", "oops")},
		{Target: "db", Err: errors.New("dial refused")},
	}
	want := `== local: output (run r1)
hello

== build: error (run r2)
oops

== db: launch failure
dial refused
`
	if got := formatAttempts(attempts); got != want {
		t.Errorf("formatAttempts() =\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatAttempts_DecodeFailure(t *testing.T) {
	_, err := runner.Execute(context.Background(), "/bin/sh", []string{"-c", `printf '\377'`})
	if err == nil {
		t.Fatal("expected a decode error")
	}
	attempts := []runner.Attempt{
		{Target: "local", Err: err},
		{Target: "db", Err: errors.New("dial refused")},
	}
	got := formatAttempts(attempts)
	if !strings.HasPrefix(got, "== local: decode failure\n") {
		t.Errorf("formatAttempts() =\n%s\nwant a decode failure on local", got)
	}
	if !strings.Contains(got, "== db: launch failure\n") {
		t.Errorf("formatAttempts() =\n%s\nwant a launch failure on db", got)
	}
}

func TestFailed(t *testing.T) {
	ok := runner.Attempt{Target: "a", Outcome: outcome(runner.KindOutput, "r1", "")}
	stderr := runner.Attempt{Target: "b", Outcome: outcome(runner.KindError, "r2", "x")}
	launch := runner.Attempt{Target: "c", Err: errors.New("boom")}

	if failed([]runner.Attempt{ok}) {
		t.Error("failed(output) = true, want false")
	}
	if !failed([]runner.Attempt{ok, stderr}) {
		t.Error("failed(output, error) = false, want true")
	}
	if !failed([]runner.Attempt{launch}) {
		t.Error("failed(launch failure) = false, want true")
	}
}

func TestWriteJSON(t *testing.T) {
	o := outcome(runner.KindOutput, "r1", "hi\n")
	attempts := []runner.Attempt{
		{Target: "db", Err: errors.New("dial refused")},
		{Target: "local", Outcome: o},
	}
	records := []*history.Record{history.NewRecord(attempts[1], "/bin/echo", []string{"hi"})}

	var buf bytes.Buffer
	if err := writeJSON(&buf, attempts, records); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	var got []jsonAttempt
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Target != "db" || !strings.Contains(got[0].Error, "dial refused") || got[0].Run != nil {
		t.Errorf("got[0] = %+v, want launch failure on db", got[0])
	}
	if got[1].Run == nil || got[1].Run.ID != "r1" || got[1].Run.Text != "hi\n" {
		t.Errorf("got[1] = %+v, want run r1", got[1])
	}
}
