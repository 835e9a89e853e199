package pagerange

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec string
		want []int
	}{
		{"1-3,5", []int{0, 1, 2, 4}},
		{"5,1-3", []int{0, 1, 2, 4}},
		{"2,2,1-2", []int{0, 1}},
		{" 4 , 6 - 7 ", []int{3, 5, 6}},
		{"3-1", []int{}},
		{"abc,2", []int{1}},
		{"1-x,x-2,1--2", []int{}},
		{"0,-3,2", []int{1}},
		{"0-2", []int{}},
		{"", []int{}},
		{",,,", []int{}},
		{"7-7", []int{6}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got := Parse(tt.spec).Indices()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	for _, spec := range []string{"1-3,5", "9,2,3,4,10-12", "1", "2-2,4-6,5"} {
		first := Parse(spec)
		second := Parse(first.String())
		if !reflect.DeepEqual(first.Indices(), second.Indices()) {
			t.Errorf("round trip of %q: %v != %v", spec, first.Indices(), second.Indices())
		}
	}
}

func TestParse_OrderInsensitive(t *testing.T) {
	a := Parse("8-10,1,3")
	b := Parse("3,1,8-10")
	if !reflect.DeepEqual(a.Indices(), b.Indices()) {
		t.Errorf("%v != %v", a.Indices(), b.Indices())
	}
}

func TestPageSpec_String(t *testing.T) {
	tests := map[string]string{
		"1,2,3,5,8,9,10": "1-3,5,8-10",
		"4":              "4",
		"":               "",
		"2,4,6":          "2,4,6",
	}
	for spec, want := range tests {
		if got := Parse(spec).String(); got != want {
			t.Errorf("Parse(%q).String() = %q, want %q", spec, got, want)
		}
	}
}

func TestPageSpec_Within(t *testing.T) {
	p := Parse("1-3,8,20")
	got := p.Within(8).Indices()
	if !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("Within(8) = %v", got)
	}
	if p.Len() != 5 {
		t.Errorf("Within mutated receiver: Len() = %d", p.Len())
	}
	if !p.Within(0).Empty() {
		t.Error("Within(0) should be empty")
	}
}

func TestPageSpec_Contains(t *testing.T) {
	p := Parse("2-4")
	for i, want := range map[int]bool{0: false, 1: true, 3: true, 4: false} {
		if got := p.Contains(i); got != want {
			t.Errorf("Contains(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestPageSpec_Selectors(t *testing.T) {
	got := Parse("1,2,3,7").Selectors()
	if !reflect.DeepEqual(got, []string{"1-3", "7"}) {
		t.Errorf("Selectors() = %v", got)
	}
	if Parse("").Selectors() != nil {
		t.Error("empty spec should have nil selectors")
	}
}

func TestFromIndices(t *testing.T) {
	got := FromIndices([]int{4, -1, 0, 4, 1}).Indices()
	if !reflect.DeepEqual(got, []int{0, 1, 4}) {
		t.Errorf("FromIndices() = %v", got)
	}
}

func TestIndices_ReturnsCopy(t *testing.T) {
	p := Parse("1-2")
	idx := p.Indices()
	idx[0] = 99
	if p.Indices()[0] != 0 {
		t.Error("Indices() exposed internal slice")
	}
}

func TestParse_ClampsHugeRanges(t *testing.T) {
	p := Parse("1-999999999")
	if p.Len() != MaxPage {
		t.Errorf("Len() = %d, want %d", p.Len(), MaxPage)
	}
	if !Parse("999999999").Empty() {
		t.Error("page beyond MaxPage should be discarded")
	}
}
