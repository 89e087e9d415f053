package callback

import "testing"

func TestSignAndVerify(t *testing.T) {
	s := NewSigner("cb-secret")

	sig := s.Sign(ScopeSuccess, "ORD-1")
	if sig == "" {
		t.Fatal("sign returned empty signature")
	}
	if !s.Verify(ScopeSuccess, "ORD-1", sig) {
		t.Error("valid signature rejected")
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := NewSigner("cb-secret")
	sig := s.Sign(ScopeSuccess, "ORD-1")

	tests := []struct {
		name    string
		scope   string
		orderID string
		sig     string
	}{
		{name: "wrong order id", scope: ScopeSuccess, orderID: "ORD-2", sig: sig},
		{name: "wrong scope", scope: ScopeFailure, orderID: "ORD-1", sig: sig},
		{name: "garbage signature", scope: ScopeSuccess, orderID: "ORD-1", sig: "deadbeef"},
		{name: "empty signature", scope: ScopeSuccess, orderID: "ORD-1", sig: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s.Verify(tt.scope, tt.orderID, tt.sig) {
				t.Error("tampered signature accepted")
			}
		})
	}
}

func TestVerifyDiffersPerSecret(t *testing.T) {
	a := NewSigner("secret-a")
	b := NewSigner("secret-b")

	sig := a.Sign(ScopeSuccess, "ORD-1")
	if b.Verify(ScopeSuccess, "ORD-1", sig) {
		t.Error("signature from another secret accepted")
	}
}

func TestDisabledSignerAcceptsEverything(t *testing.T) {
	s := NewSigner("")

	if s.Enabled() {
		t.Fatal("signer with empty secret reports enabled")
	}
	if !s.Verify(ScopeSuccess, "ORD-1", "") {
		t.Error("disabled signer rejected an unsigned callback")
	}
	if !s.Verify(ScopeFailure, "ORD-1", "anything") {
		t.Error("disabled signer rejected a signed callback")
	}
}
