package engine

import "testing"

func TestLicenseDecisionValuesDistinct(t *testing.T) {
	// Connect's license branch is only reachable past a real handshake,
	// which newTestEngine doesn't perform; this instead documents the
	// decision values Connect switches on so a future refactor of the
	// branch can't silently renumber them.
	if LicenseAccept == LicenseReject || LicenseReject == LicenseTimeout || LicenseAccept == LicenseTimeout {
		t.Fatal("LicenseDecision constants must be pairwise distinct")
	}
}

func TestLicenseCallbackIsInvokedWithServerText(t *testing.T) {
	var gotText string
	var cb LicenseCallback = func(text string) LicenseDecision {
		gotText = text
		return LicenseAccept
	}
	decision := cb("please agree to the terms")
	if decision != LicenseAccept {
		t.Fatalf("decision = %v, want LicenseAccept", decision)
	}
	if gotText != "please agree to the terms" {
		t.Fatalf("gotText = %q, want the text passed in", gotText)
	}
}
