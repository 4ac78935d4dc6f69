package attendance

import (
	"strings"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

// Summarize counts rows per status.
func Summarize(rows []schema.AdminRow) schema.Summary {
	var sum schema.Summary
	for _, r := range rows {
		sum.Total++
		switch r.Status {
		case schema.StatusOK:
			sum.OK++
		case schema.StatusLate:
			sum.Late++
		case schema.StatusAbsent:
			sum.Absent++
		case schema.StatusIncomplete:
			sum.Incomplete++
		}
	}
	return sum
}

// FilterRows keeps rows whose full name contains query (case-insensitive) and, when
// status is not empty, whose status equals it.
func FilterRows(rows []schema.AdminRow, query string, status schema.Status) []schema.AdminRow {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]schema.AdminRow, 0, len(rows))
	for _, r := range rows {
		if q != "" && !strings.Contains(strings.ToLower(r.FullName), q) {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FilterUsers keeps users whose full name or email contains query (case-insensitive).
func FilterUsers(users []schema.User, query string) []schema.User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users
	}
	out := make([]schema.User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FullName), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

// ActiveCount returns the number of active users.
func ActiveCount(users []schema.User) int {
	n := 0
	for _, u := range users {
		if u.Active {
			n++
		}
	}
	return n
}

// ParseStatus maps a status name (any case) to a Status. It returns false for unknown names.
func ParseStatus(s string) (schema.Status, bool) {
	switch st := schema.Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case schema.StatusOK, schema.StatusLate, schema.StatusAbsent, schema.StatusIncomplete:
		return st, true
	}
	return "", false
}
