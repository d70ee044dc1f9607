package core

import (
	"errors"
	"testing"
)

func TestExitCode(t *testing.T) {
	if code := ExitCode(nil); code != ExitOK {
		t.Fatalf("expected %d, got %d", ExitOK, code)
	}
	if code := ExitCode(errors.New("boom")); code != ExitRuntime {
		t.Fatalf("expected %d, got %d", ExitRuntime, code)
	}
	if code := ExitCode(&CLIError{Code: ExitUsage, Msg: "bad flag"}); code != ExitUsage {
		t.Fatalf("expected %d, got %d", ExitUsage, code)
	}
}

func TestWrapErrorMessage(t *testing.T) {
	err := WrapError(ExitRuntime, "publish failed", errors.New("broker down"))
	if err.Error() != "publish failed: broker down" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestReplyCodeRoundTrip(t *testing.T) {
	cases := []struct {
		exit int
		code string
	}{
		{ExitUsage, CodeInvalid},
		{ExitNotFound, CodeNotFound},
		{ExitRuntime, CodeRuntime},
	}
	for _, tc := range cases {
		code := ReplyCodeForError(&CLIError{Code: tc.exit})
		if code != tc.code {
			t.Fatalf("exit %d: expected %s, got %s", tc.exit, tc.code, code)
		}
		back := ErrorForReplyCode(code, "msg")
		if back.Code != tc.exit {
			t.Fatalf("code %s: expected exit %d, got %d", code, tc.exit, back.Code)
		}
	}
	if ReplyCodeForError(errors.New("plain")) != CodeRuntime {
		t.Fatalf("plain errors map to runtime code")
	}
}
