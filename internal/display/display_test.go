package display

import (
	"strings"
	"testing"
)

func TestProject(t *testing.T) {
	p := Project("This is [[link1]] and [[link2]].")
	if p.Text != "This is link1 and link2." {
		t.Fatalf("Text = %q", p.Text)
	}
	want := []Span{
		{Start: 8, End: 13, Text: "link1", RawStart: 8, RawEnd: 17},
		{Start: 18, End: 23, Text: "link2", RawStart: 22, RawEnd: 31},
	}
	if len(p.Links) != len(want) {
		t.Fatalf("len(Links) = %d, want %d", len(p.Links), len(want))
	}
	for i := range want {
		if p.Links[i] != want[i] {
			t.Errorf("Links[%d] = %+v, want %+v", i, p.Links[i], want[i])
		}
	}
}

func TestProject_LengthLaw(t *testing.T) {
	inputs := []string{
		"",
		"no links at all",
		"[[a]]",
		"[[a]][[b]]",
		"start [[x y]] middle [[dir/z]] end\n[[q]]",
		"[[unterminated and [[ok]]",
		"§§§AI_RESPONSE_START§§§\n[[ünïcödé]]\n§§§AI_RESPONSE_END§§§",
		"[[]] [[a]b]] ]]",
	}
	for _, raw := range inputs {
		p := Project(raw)
		if got, want := len(p.Text), len(raw)-4*len(p.Links); got != want {
			t.Errorf("%q: len(Text) = %d, want %d", raw, got, want)
		}
		for _, s := range p.Links {
			if s.End-s.Start != len(s.Text) || s.RawEnd-s.RawStart-4 != len(s.Text) {
				t.Errorf("%q: inconsistent span %+v", raw, s)
			}
			if p.Text[s.Start:s.End] != s.Text {
				t.Errorf("%q: display text %q under span, want %q", raw, p.Text[s.Start:s.End], s.Text)
			}
			if raw[s.RawStart:s.RawEnd] != "[["+s.Text+"]]" {
				t.Errorf("%q: raw span %+v does not cover link", raw, s)
			}
		}
	}
}

func TestProject_NoLinksIsIdentity(t *testing.T) {
	raw := "plain [text] with [single] brackets"
	p := Project(raw)
	if p.Text != raw || len(p.Links) != 0 {
		t.Errorf("Project = %+v", p)
	}
}

func TestHitTest_InclusiveEdges(t *testing.T) {
	p := Project("go [[home]] now")
	// "go home now": link covers 3..7.
	for _, pos := range []int{3, 5, 7} {
		if got, ok := p.HitTest(pos); !ok || got != "home" {
			t.Errorf("HitTest(%d) = %q, %v", pos, got, ok)
		}
	}
	for _, pos := range []int{0, 2, 8, 100} {
		if _, ok := p.HitTest(pos); ok {
			t.Errorf("HitTest(%d) should miss", pos)
		}
	}
}

func TestHitTest_AdjacentLinks(t *testing.T) {
	p := Project("[[a]][[b]]")
	// Display "ab": the shared edge belongs to the first link.
	if got, _ := p.HitTest(1); got != "a" {
		t.Errorf("HitTest(1) = %q, want a", got)
	}
	if got, _ := p.HitTest(2); got != "b" {
		t.Errorf("HitTest(2) = %q, want b", got)
	}
}

func TestRawOffset(t *testing.T) {
	raw := "ab [[cd]] ef [[g]]"
	p := Project(raw)
	// Display: "ab cd ef g"
	cases := map[int]int{
		0: 0,
		2: 2,
		3: 5,  // 'c'
		4: 6,  // 'd'
		6: 10, // 'e' after first link
		9: 15, // 'g'
	}
	for pos, want := range cases {
		if got := p.RawOffset(pos); got != want {
			t.Errorf("RawOffset(%d) = %d, want %d", pos, got, want)
		}
	}
	for pos := range len(p.Text) {
		r := p.RawOffset(pos)
		if p.Text[pos] != raw[r] {
			t.Errorf("RawOffset(%d) = %d maps %q to %q", pos, r, p.Text[pos], raw[r])
		}
	}
	if got := p.RawOffset(-5); got != 0 {
		t.Errorf("negative offset = %d", got)
	}
}

func TestProject_LargeInput(t *testing.T) {
	raw := strings.Repeat("text [[link]] ", 1000)
	p := Project(raw)
	if len(p.Links) != 1000 {
		t.Fatalf("links = %d", len(p.Links))
	}
	if len(p.Text) != len(raw)-4000 {
		t.Errorf("len = %d", len(p.Text))
	}
}
