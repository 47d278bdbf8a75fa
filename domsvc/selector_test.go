package domsvc

import "testing"

func TestParseSelectorTable(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
		want string
	}{
		{"#q", KindCSS, "#q"},
		{".go", KindCSS, ".go"},
		{"t:input", KindCSS, "input"},
		{"tag:input", KindCSS, "input"},
		{"@name=email", KindCSS, `[name="email"]`},
		{"@placeholder", KindCSS, "[placeholder]"},
		{"text:Go", KindXPath, `//*[contains(text(),"Go")]`},
		{"tx:Go", KindXPath, `//*[contains(text(),"Go")]`},
		{"text=Go", KindXPath, `//*[text()="Go"]`},
		{"x://button", KindXPath, "//button"},
		{"xpath://button", KindXPath, "//button"},
		{"//div[@id='x']", KindXPath, "//div[@id='x']"},
		{"(//div)[1]", KindXPath, "(//div)[1]"},
		{"div.foo", KindCSS, "div.foo"},
	}
	for _, c := range cases {
		got := Parse(c.in)
		if got.Kind != c.kind || got.Query != c.want {
			t.Errorf("Parse(%q) = {%v, %q}, want {%v, %q}", c.in, got.Kind, got.Query, c.kind, c.want)
		}
	}
}

func TestParseIsDeterministic(t *testing.T) {
	for _, s := range []string{"#id", "@attr=v", "text:hi", "//x", "plain"} {
		a := Parse(s)
		b := Parse(s)
		if a != b {
			t.Errorf("Parse(%q) not deterministic: %+v vs %+v", s, a, b)
		}
	}
}

func TestAttrValueEscaping(t *testing.T) {
	got := Parse(`@data-x=a"b`)
	want := `[data-x="a\"b"]`
	if got.Query != want {
		t.Errorf("got %q want %q", got.Query, want)
	}
}

func TestXPathLiteralWithBothQuotes(t *testing.T) {
	got := containsTextXPath(`it's "quoted"`)
	if got == "" {
		t.Fatal("empty result")
	}
	// Must not contain an unescaped literal that would break XPath syntax;
	// concat() form is used when both quote types are present.
	if !contains(got, "concat(") {
		t.Errorf("expected concat() fallback, got %q", got)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
