package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEqual(t *testing.T) {
	base := CustomURLCategory{
		Name:        "web",
		URLValues:   []string{"a.com", "b.com"},
		Type:        CategoryTypeURLList,
		Description: "d",
	}

	tests := []struct {
		name   string
		modify func(c *CustomURLCategory)
		want   bool
	}{
		{"identical", func(c *CustomURLCategory) {}, true},
		{"empty type equals default", func(c *CustomURLCategory) { c.Type = "" }, true},
		{"reordered urls", func(c *CustomURLCategory) { c.URLValues = []string{"b.com", "a.com"} }, false},
		{"extra url", func(c *CustomURLCategory) { c.URLValues = append(c.URLValues, "c.com") }, false},
		{"different type", func(c *CustomURLCategory) { c.Type = CategoryTypeCategoryMatch }, false},
		{"different description", func(c *CustomURLCategory) { c.Description = "" }, false},
		{"different name", func(c *CustomURLCategory) { c.Name = "Web" }, false},
		{"url case matters", func(c *CustomURLCategory) { c.URLValues = []string{"A.com", "b.com"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := base.Clone()
			tt.modify(&other)
			if got := Equal(base, other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeChanges(t *testing.T) {
	before := &CustomURLCategory{Name: "web", URLValues: []string{"a.com"}, Type: CategoryTypeURLList}
	after := &CustomURLCategory{Name: "web", URLValues: []string{"a.com", "b.com"}, Description: "new"}

	t.Run("modify lists only differing fields", func(t *testing.T) {
		want := []Change{
			{Path: FieldURLValues, Before: []string{"a.com"}, After: []string{"a.com", "b.com"}, Action: ChangeActionModify},
			{Path: FieldDescription, Before: "", After: "new", Action: ChangeActionModify},
		}
		if diff := cmp.Diff(want, ComputeChanges(before, after)); diff != "" {
			t.Errorf("changes mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("create omits empty description", func(t *testing.T) {
		want := []Change{
			{Path: FieldName, After: "web", Action: ChangeActionAdd},
			{Path: FieldURLValues, After: []string{"a.com"}, Action: ChangeActionAdd},
			{Path: FieldType, After: CategoryTypeURLList, Action: ChangeActionAdd},
		}
		if diff := cmp.Diff(want, ComputeChanges(nil, before)); diff != "" {
			t.Errorf("changes mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("delete includes description when set", func(t *testing.T) {
		got := ComputeChanges(after, nil)
		if len(got) != 4 {
			t.Fatalf("Expected 4 changes, got %d", len(got))
		}
		for _, c := range got {
			if c.Action != ChangeActionRemove || c.After != nil {
				t.Errorf("Expected remove without after value, got %+v", c)
			}
		}
	})

	t.Run("nil both sides", func(t *testing.T) {
		if got := ComputeChanges(nil, nil); got != nil {
			t.Errorf("Expected nil, got %v", got)
		}
	})
}

func TestDiff_String(t *testing.T) {
	d := Diff{
		Before: &CustomURLCategory{Name: "web"},
		After:  &CustomURLCategory{Name: "web"},
		Changes: []Change{
			{Path: FieldType, Before: CategoryTypeURLList, After: CategoryTypeCategoryMatch, Action: ChangeActionModify},
		},
	}
	want := "- type: \"URL List\"\n+ type: \"Category Match\"\n"
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if (Diff{}).String() != "" {
		t.Error("Expected empty string for empty diff")
	}
}

func TestScope(t *testing.T) {
	tests := []struct {
		scope    Scope
		panorama bool
		shared   bool
		str      string
	}{
		{Scope{}, false, false, "vsys:vsys1"},
		{Scope{Vsys: "vsys2"}, false, false, "vsys:vsys2"},
		{Scope{DeviceGroup: "branch"}, true, false, "device-group:branch"},
		{Scope{DeviceGroup: SharedDeviceGroup}, true, true, "device-group:shared"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if tt.scope.IsPanorama() != tt.panorama || tt.scope.IsShared() != tt.shared {
				t.Errorf("unexpected scope classification for %+v", tt.scope)
			}
			if tt.scope.String() != tt.str {
				t.Errorf("String() = %q, want %q", tt.scope.String(), tt.str)
			}
		})
	}
}
