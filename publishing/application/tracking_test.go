package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteContent(t *testing.T) {
	const raw = "https://shop.example.com/sale"
	const tracked = "https://go.example.com/r/ab12"

	cases := []struct {
		name    string
		content string
		raw     string
		tracked string
		want    string
	}{
		{"first occurrence only", "Sale: " + raw + " and " + raw, raw, tracked, "Sale: " + tracked + " and " + raw},
		{"link absent", "No link here", raw, tracked, "No link here"},
		{"prefix of another url is still exact", "See " + raw + "/shoes", raw, tracked, "See " + tracked + "/shoes"},
		{"already rewritten", "Sale: " + tracked, raw, tracked, "Sale: " + tracked},
		{"empty raw link", "Sale: " + raw, "", tracked, "Sale: " + raw},
		{"empty tracked url", "Sale: " + raw, raw, "", "Sale: " + raw},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RewriteContent(tc.content, tc.raw, tc.tracked))
		})
	}
}

func TestRewriteContent_Idempotent(t *testing.T) {
	once := RewriteContent("Go to https://a.example.com", "https://a.example.com", "https://r.example.com/x")
	twice := RewriteContent(once, "https://a.example.com", "https://r.example.com/x")
	assert.Equal(t, once, twice)
}
