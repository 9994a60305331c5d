package kind

import "testing"

func TestKind_IsValid(t *testing.T) {
	for _, k := range []Kind{Multimodal, Conversational, Domain} {
		if !k.IsValid() {
			t.Errorf("%q should be valid", k)
		}
	}
	if Kind("hybrid").IsValid() {
		t.Error("hybrid should be invalid")
	}
}

func TestStrategies(t *testing.T) {
	if got := Domain.RemoteStrategy(); got != "mcp-domain" {
		t.Errorf("RemoteStrategy = %q", got)
	}
	if got := Conversational.LocalStrategy(); got != "direct-conversational" {
		t.Errorf("LocalStrategy = %q", got)
	}
	if !Multimodal.RemoteStrategy().IsRemote() {
		t.Error("remote strategy should report IsRemote")
	}
	if Multimodal.LocalStrategy().IsRemote() {
		t.Error("local strategy should not report IsRemote")
	}
	if Multimodal.Operation() != "search.multimodal" {
		t.Errorf("Operation = %q", Multimodal.Operation())
	}
}
