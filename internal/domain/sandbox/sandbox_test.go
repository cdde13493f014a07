package sandbox_test

import (
	"errors"
	"testing"

	"github.com/gatewright/gatewright/internal/domain"
	"github.com/gatewright/gatewright/internal/domain/sandbox"
)

func newSandbox() *sandbox.Sandbox {
	return sandbox.New(sandbox.DefaultConfig())
}

func TestValidateAllowsSimpleRead(t *testing.T) {
	res := newSandbox().Validate("cat package.json")
	if !res.Allowed {
		t.Fatalf("expected allowed, got rejection at %s: %s", res.Layer, res.Reason)
	}
	if res.Layer != sandbox.LayerNone {
		t.Errorf("expected no layer for allowed command, got %q", res.Layer)
	}
}

func TestValidateRejectsUnknownCommand(t *testing.T) {
	res := newSandbox().Validate("python3 script.py")
	if res.Allowed {
		t.Fatal("expected rejection")
	}
	if res.Layer != sandbox.LayerAllowlist {
		t.Errorf("expected allowlist layer, got %q", res.Layer)
	}
}

func TestValidateRejectsChaining(t *testing.T) {
	res := newSandbox().Validate("npm test ; rm -rf /")
	if res.Allowed {
		t.Fatal("expected rejection")
	}
	if res.Layer != sandbox.LayerBlocklist {
		t.Errorf("expected blocklist layer, got %q", res.Layer)
	}
}

func TestValidateRejectsBlockedPatterns(t *testing.T) {
	cases := []string{
		"ls && cat secret",
		"cat a || cat b",
		"cat a | grep x",
		"cat a > out.txt",
		"cat a >> out.txt",
		"cat < input",
		"git log `whoami`",
		"ls $(pwd)",
		"cat ${HOME}/x",
	}
	for _, cmd := range cases {
		res := newSandbox().Validate(cmd)
		if res.Allowed || res.Layer != sandbox.LayerBlocklist {
			t.Errorf("Validate(%q) = %+v, want blocklist rejection", cmd, res)
		}
	}
}

func TestValidateRejectsSmuggledToken(t *testing.T) {
	// Allowed prefix, forbidden verb in the arguments.
	cases := []string{
		"grep curl package.json",
		"npm test --after rm something",
		"find . -name wget",
		"cat /etc/passwd",
		"ls /dev/null",
	}
	for _, cmd := range cases {
		res := newSandbox().Validate(cmd)
		if res.Allowed || res.Layer != sandbox.LayerInjection {
			t.Errorf("Validate(%q) = %+v, want injection rejection", cmd, res)
		}
	}
}

func TestValidateVerbTokensMatchWholeWordsOnly(t *testing.T) {
	// "format" contains "rm" but is not the rm verb.
	res := newSandbox().Validate("npm run format")
	if !res.Allowed {
		t.Fatalf("expected allowed, got rejection at %s: %s", res.Layer, res.Reason)
	}
}

func TestValidateEmptyCommand(t *testing.T) {
	res := newSandbox().Validate("   ")
	if res.Allowed || res.Layer != sandbox.LayerAllowlist {
		t.Fatalf("expected allowlist rejection for empty command, got %+v", res)
	}
}

func TestValidateIdempotent(t *testing.T) {
	sb := newSandbox()
	for _, cmd := range []string{"cat package.json", "npm test ; rm -rf /", "python3 x.py"} {
		first := sb.Validate(cmd)
		for range 3 {
			if got := sb.Validate(cmd); got != first {
				t.Errorf("Validate(%q) not idempotent: %+v vs %+v", cmd, got, first)
			}
		}
	}
}

func TestResultErr(t *testing.T) {
	res := newSandbox().Validate("cat package.json")
	if err := res.Err(); err != nil {
		t.Fatalf("allowed result should have nil error, got %v", err)
	}

	res = newSandbox().Validate("python3 x.py")
	err := res.Err()
	if err == nil {
		t.Fatal("rejected result should produce an error")
	}
	if !errors.Is(err, domain.ErrSecurity) {
		t.Error("sandbox rejection should wrap domain.ErrSecurity")
	}
}
