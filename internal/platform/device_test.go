package platform

import "testing"

func TestPickQueueFamiliesPrefersDedicatedComputeAndTransfer(t *testing.T) {
	caps := []FamilyCaps{
		{Graphics: true, Compute: true, Transfer: true, Present: true}, // 0: universal
		{Compute: true, Transfer: true},                                // 1: dedicated compute+transfer
		{Transfer: true},                                               // 2: dedicated transfer only
	}
	fam := pickQueueFamilies(caps)
	if !fam.HasGfx || fam.Graphics != 0 {
		t.Fatalf("graphics family = %d (has=%v), want 0", fam.Graphics, fam.HasGfx)
	}
	if !fam.HasCmp || fam.Compute != 1 {
		t.Fatalf("compute family = %d (has=%v), want 1 (dedicated)", fam.Compute, fam.HasCmp)
	}
	if !fam.HasXfer || fam.Transfer != 2 {
		t.Fatalf("transfer family = %d (has=%v), want 2 (dedicated)", fam.Transfer, fam.HasXfer)
	}
	if !fam.HasPres || fam.Present != 0 {
		t.Fatalf("present family = %d (has=%v), want 0", fam.Present, fam.HasPres)
	}
}

func TestPickQueueFamiliesFallsBackToGraphicsFamily(t *testing.T) {
	caps := []FamilyCaps{
		{Graphics: true, Compute: true, Transfer: true, Present: true},
	}
	fam := pickQueueFamilies(caps)
	if fam.Compute != fam.Graphics || fam.Transfer != fam.Graphics {
		t.Fatalf("expected compute and transfer to fall back to the single universal family %d, got compute=%d transfer=%d",
			fam.Graphics, fam.Compute, fam.Transfer)
	}
}

func TestPickQueueFamiliesNoGraphicsFamily(t *testing.T) {
	caps := []FamilyCaps{
		{Compute: true, Transfer: true},
	}
	fam := pickQueueFamilies(caps)
	if fam.HasGfx {
		t.Fatalf("expected no graphics family to be found")
	}
}
