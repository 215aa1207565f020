package paging

import (
	"net/http/httptest"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		target string
		want   Request
	}{
		{"/", Request{Start: 1, Limit: PageSize}},
		{"/?start=51&limit=25", Request{Start: 51, Limit: 25}},
		{"/?start=0&limit=-3", Request{Start: 1, Limit: PageSize}},
		{"/?start=abc", Request{Start: 1, Limit: PageSize}},
		{"/?limit=100000", Request{Start: 1, Limit: MaxPageSize}},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			got := Parse(httptest.NewRequest("GET", tc.target, nil))
			if got != tc.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tc.target, got, tc.want)
			}
		})
	}
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestSlice(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		req       Request
		wantFirst int
		wantLen   int
		want      Page
	}{
		{
			name: "empty", rows: 0, req: Request{Start: 1, Limit: 10},
			want: Page{},
		},
		{
			name: "single page", rows: 3, req: Request{Start: 1, Limit: 10},
			wantFirst: 1, wantLen: 3,
			want: Page{Start: 1, End: 3, Total: 3},
		},
		{
			name: "first of several", rows: 25, req: Request{Start: 1, Limit: 10},
			wantFirst: 1, wantLen: 10,
			want: Page{Start: 1, End: 10, Total: 25, HasNext: true, NextStart: 11},
		},
		{
			name: "middle", rows: 25, req: Request{Start: 11, Limit: 10},
			wantFirst: 11, wantLen: 10,
			want: Page{Start: 11, End: 20, Total: 25, HasPrev: true, PrevStart: 1, HasNext: true, NextStart: 21},
		},
		{
			name: "last partial", rows: 25, req: Request{Start: 21, Limit: 10},
			wantFirst: 21, wantLen: 5,
			want: Page{Start: 21, End: 25, Total: 25, HasPrev: true, PrevStart: 11},
		},
		{
			name: "past the end", rows: 5, req: Request{Start: 40, Limit: 10},
			want: Page{Total: 5, HasPrev: true, PrevStart: 30},
		},
		{
			name: "zero request uses defaults", rows: 3, req: Request{},
			wantFirst: 1, wantLen: 3,
			want: Page{Start: 1, End: 3, Total: 3},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			window, page := Slice(seq(tc.rows), tc.req)
			if len(window) != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(window), tc.wantLen)
			}
			if tc.wantLen > 0 && window[0] != tc.wantFirst {
				t.Errorf("first = %d, want %d", window[0], tc.wantFirst)
			}
			if page != tc.want {
				t.Errorf("page = %+v, want %+v", page, tc.want)
			}
		})
	}
}
