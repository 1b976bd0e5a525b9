package admin

import (
	"reflect"
	"testing"
)

func TestIsAdmin(t *testing.T) {
	Init([]int64{10, 20})
	defer func() {
		Init(nil)
		SetDynamicSource(nil)
	}()

	if !IsAdmin(10) || !IsAdmin(20) {
		t.Fatal("static admins not recognized")
	}
	if IsAdmin(30) {
		t.Fatal("unknown user recognized as admin")
	}

	SetDynamicSource(func(userID int64) bool { return userID == 30 })
	if !IsAdmin(30) {
		t.Fatal("dynamic source not consulted")
	}
	if IsAdmin(40) {
		t.Fatal("dynamic source false must not grant access")
	}
}

func TestParseRecipients(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"@alice", []string{"alice"}},
		{"@alice, @bob", []string{"alice", "bob"}},
		{"alice,bob", []string{"alice", "bob"}},
		{" @alice ,, , @bob ", []string{"alice", "bob"}},
		{"", nil},
		{", ,", nil},
	}
	for _, tc := range cases {
		if got := parseRecipients(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseRecipients(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
