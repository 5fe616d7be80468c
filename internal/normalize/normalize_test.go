package normalize

import "testing"

func TestEmail(t *testing.T) {
	if got := Email("  User.Name@Example.COM "); got != "user.name@example.com" {
		t.Fatalf("Email normalization wrong: %q", got)
	}
}
