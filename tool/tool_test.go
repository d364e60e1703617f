package tool

import "testing"

func TestFQN(t *testing.T) {
	if got := FQN("dummy", "echo"); got != "dummy.echo" {
		t.Errorf("FQN() = %q, want %q", got, "dummy.echo")
	}
}

func TestResultDiscriminated(t *testing.T) {
	ok := Ok("hi")
	if !ok.Success || ok.Err != "" {
		t.Errorf("Ok() produced inconsistent result: %+v", ok)
	}

	bad := Err("boom")
	if bad.Success || bad.Data != nil {
		t.Errorf("Err() produced inconsistent result: %+v", bad)
	}
}
