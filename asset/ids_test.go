package asset

import "testing"

func TestNewIDsAreUnique(t *testing.T) {
	if NewMeshID() == NewMeshID() {
		t.Fatalf("two calls to NewMeshID produced the same ID")
	}
	if NewInstanceID() == NewInstanceID() {
		t.Fatalf("two calls to NewInstanceID produced the same ID")
	}
}
