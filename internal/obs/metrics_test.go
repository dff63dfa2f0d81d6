package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/users/01HZX3":              "/v1/users/:id",
		"/v1/users/01HZX3/permissions":  "/v1/users/:id/permissions",
		"/v1/users/01HZX3/extra":        "/v1/users/01HZX3/extra",
		"/v1/groups/01HZX3/ancestry":    "/v1/groups/:id/ancestry",
		"/v1/groups/01HZX3/members":     "/v1/groups/:id/members",
		"/v1/roles/01HZX3":              "/v1/roles/:id",
		"/v1/permissions/01HZX3?x=1":    "/v1/permissions/:id",
		"/v1/users":                     "/v1/users",
		"/v1/sessions/abc":              "/v1/sessions/abc",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
