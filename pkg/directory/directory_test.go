package directory

import "testing"

func TestSetGet(t *testing.T) {
	d := New()
	d.Set("answer", 42)

	v := d.Get("answer")
	if v != 42 {
		t.Errorf("Get(%q) = %v, want 42", "answer", v)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	d := New()
	if v := d.Get("missing"); v != nil {
		t.Errorf("Get(missing) = %v, want nil", v)
	}
}

func TestMustGetPanicsOnMissing(t *testing.T) {
	d := New()
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustGet did not panic on missing entry")
		}
	}()
	d.MustGet("missing")
}

func TestHas(t *testing.T) {
	d := New()
	if d.Has("hal") {
		t.Error("Has(hal) = true before Set")
	}
	d.Set("hal", struct{}{})
	if !d.Has("hal") {
		t.Error("Has(hal) = false after Set")
	}
}

func TestSetOverwrites(t *testing.T) {
	d := New()
	d.Set("name", "first")
	d.Set("name", "second")
	if v := d.Get("name"); v != "second" {
		t.Errorf("Get(name) = %v, want second", v)
	}
}
