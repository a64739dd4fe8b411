package kofv

import "testing"

func TestFieldValuesPreservesInsertionOrder(t *testing.T) {
	fv := NewFieldValues()
	fv.Set("vni", "100")
	fv.Set("admin_status", "up")
	fv.Set("mtu", "9100")

	got := fv.Slice()
	want := [][2]string{{"vni", "100"}, {"admin_status", "up"}, {"mtu", "9100"}}

	if len(got) != len(want) {
		t.Fatalf("Slice() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFieldValuesResetKeepsPosition(t *testing.T) {
	fv := NewFieldValues()
	fv.Set("a", "1")
	fv.Set("b", "2")
	fv.Set("a", "3")

	got := fv.Slice()
	want := [][2]string{{"a", "3"}, {"b", "2"}}

	if len(got) != len(want) {
		t.Fatalf("Slice() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFieldValuesCloneIsIndependent(t *testing.T) {
	fv := NewFieldValues()
	fv.Set("x", "1")

	clone := fv.Clone()
	clone.Set("x", "2")
	clone.Set("y", "3")

	if v, _ := fv.Get("x"); v != "1" {
		t.Errorf("original mutated by clone: x = %s", v)
	}
	if _, ok := fv.Get("y"); ok {
		t.Error("original gained a field added only to the clone")
	}
}

func TestFromSliceRoundTrip(t *testing.T) {
	pairs := [][2]string{{"ifname", "Vlan100"}, {"vrf_name", "Vrf_red"}}
	fv := FromSlice(pairs)

	got := fv.Slice()
	if len(got) != len(pairs) {
		t.Fatalf("Slice() length = %d, want %d", len(got), len(pairs))
	}
	for i := range pairs {
		if got[i] != pairs[i] {
			t.Errorf("Slice()[%d] = %v, want %v", i, got[i], pairs[i])
		}
	}
}

func TestNilFieldValuesSliceIsEmpty(t *testing.T) {
	var fv *FieldValues
	if got := fv.Slice(); got != nil {
		t.Errorf("Slice() on nil = %v, want nil", got)
	}
}
