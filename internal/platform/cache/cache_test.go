package cache

import (
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"wrong-scheme", "http://localhost:6379", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"learner", "u1", "history"}, "learner:u1:history"},
		{[]string{"", "u1", "mastery"}, "u1:mastery"},
		{[]string{"single"}, "single"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := JoinKey(tt.parts...); got != tt.want {
			t.Errorf("JoinKey(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestCache_Key(t *testing.T) {
	c := &Cache{Namespace: DefaultNamespace}
	if got, want := c.Key("learner", "u1"), "pai-tutor:learner:u1"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999", "")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}
