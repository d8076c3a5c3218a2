package models

import (
	"encoding/json"
	"testing"
)

func TestNullable_UnmarshalJSON(t *testing.T) {
	var body struct {
		AssignedTo Nullable[string] `json:"assignedTo"`
		DueDate    Nullable[string] `json:"dueDate"`
		Title      Nullable[string] `json:"title"`
	}
	if err := json.Unmarshal([]byte(`{"assignedTo":null,"dueDate":"2026-01-02"}`), &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !body.AssignedTo.Set || body.AssignedTo.Value != nil {
		t.Errorf("assignedTo = %+v, want set to null", body.AssignedTo)
	}
	if !body.DueDate.Set || body.DueDate.Value == nil || *body.DueDate.Value != "2026-01-02" {
		t.Errorf("dueDate = %+v, want 2026-01-02", body.DueDate)
	}
	if body.Title.Set {
		t.Error("title should not be set when absent")
	}
}

func TestNullable_SQLValue(t *testing.T) {
	if v := Null[string]().SQLValue(); v != nil {
		t.Errorf("Null().SQLValue() = %v, want nil", v)
	}
	if v := Some("x").SQLValue(); v != "x" {
		t.Errorf("Some(x).SQLValue() = %v, want x", v)
	}
}

func TestUserOrgID(t *testing.T) {
	org := "org-1"
	if got := (&User{OrganizationID: &org}).OrgID(); got != "org-1" {
		t.Errorf("OrgID() = %q, want org-1", got)
	}
	if got := (&User{}).OrgID(); got != "" {
		t.Errorf("OrgID() = %q, want empty", got)
	}
}

func TestOrganizationIsActive(t *testing.T) {
	if !(&Organization{Status: OrganizationActive}).IsActive() {
		t.Error("active organization reported inactive")
	}
	if (&Organization{Status: OrganizationInactive}).IsActive() {
		t.Error("inactive organization reported active")
	}
}

func TestUserPasswordHashNotSerialized(t *testing.T) {
	b, err := json.Marshal(User{ID: "u1", PasswordHash: "$2a$10$secret"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for k := range m {
		if k == "passwordHash" || k == "password_hash" || k == "PasswordHash" {
			t.Errorf("password hash serialized under %q", k)
		}
	}
}
