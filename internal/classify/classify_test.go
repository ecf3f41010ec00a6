package classify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"eduetl/internal/record"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"The-Living_World.xlsx", "the living world xlsx"},
		{"  Plant   KINGDOM!! ", "plant kingdom"},
		{"Évolution (Part 2)", "evolution part 2"},
		{"BTLP12C10Q034", "btlp12c10q034"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify_FirstDeclaredRuleWins(t *testing.T) {
	t.Parallel()

	// Both rules match "plant kingdom"; the first one must win regardless of
	// which is more specific.
	a := New(
		Contains("kingdom", Key{Label: "generic"}),
		Contains("plant kingdom", Key{Label: "specific"}),
	)
	b := New(
		Contains("plant kingdom", Key{Label: "specific"}),
		Contains("kingdom", Key{Label: "generic"}),
	)

	ka, err := a.Classify("Plant-Kingdom notes")
	require.NoError(t, err)
	require.Equal(t, "generic", ka.Label)

	kb, err := b.Classify("Plant-Kingdom notes")
	require.NoError(t, err)
	require.Equal(t, "specific", kb.Label)
}

func TestClassify_RuleOrderBeatsSourceOrder(t *testing.T) {
	t.Parallel()

	c := New(
		Contains("evolution", Key{Label: "12"}),
		Contains("biomolecules", Key{Label: "11"}),
	)
	// The first source matches the second rule; the second source matches
	// the first rule. Rule order decides.
	k, err := c.Classify("biomolecules", "evolution")
	require.NoError(t, err)
	require.Equal(t, "12", k.Label)
}

func TestClassify_IsDeterministic(t *testing.T) {
	t.Parallel()

	c := New(
		MustRegex(`c(\d+)q`, Key{Label: "Chapter-$1"}),
		Contains("misc", Key{Label: "misc"}),
	)
	inputs := []string{"BTLP12C10Q034.mp4", "x misc", "nothing", "BTLP12C3Q001"}

	first := make([]Key, len(inputs))
	for i, in := range inputs {
		first[i], _ = c.Classify(in)
	}
	// Reverse call order must not change any answer.
	for i := len(inputs) - 1; i >= 0; i-- {
		k, _ := c.Classify(inputs[i])
		require.Equal(t, first[i], k, "input %q", inputs[i])
	}
}

func TestClassify_RegexTemplates(t *testing.T) {
	t.Parallel()

	c := New(MustRegex(`c(\d+)q`, Key{Label: "Chapter-$1"}))

	k, err := c.Classify("https://static.example.com/tlp/BTLP12C10Q034.mp4")
	require.NoError(t, err)
	require.Equal(t, Key{Label: "Chapter-10"}, k)
}

func TestClassify_NoMatchIsUnclassified(t *testing.T) {
	t.Parallel()

	c := New(Contains("ecosystem", Key{Label: "12"}))
	k, err := c.Classify("cover page", "")
	require.NoError(t, err)
	require.True(t, k.IsUnclassified())
	require.Equal(t, Unclassified, k)

	// A rule label that happens to read "unclassified" is still a real key.
	c2 := New(Contains("x", Key{Label: "unclassified"}))
	k2, _ := c2.Classify("x")
	require.False(t, k2.IsUnclassified())
	require.NotEqual(t, Unclassified, k2)
}

func TestClassify_PrimaryOnly(t *testing.T) {
	t.Parallel()

	c := New(Contains("kingdom", Key{Label: "11"}).Primary())

	k, _ := c.Classify("plant-kingdom.xlsx", "other")
	require.Equal(t, "11", k.Label)

	k, _ = c.Classify("cover.xlsx", "animal kingdom")
	require.True(t, k.IsUnclassified())
}

func TestClassify_StructuralMalformed(t *testing.T) {
	t.Parallel()

	c := New(URLFoldersRule())
	k, err := c.Classify("bad-url")
	require.True(t, k.IsUnclassified())
	require.ErrorIs(t, err, ErrMalformedRecord)

	// A later rule matching wins over the structural failure.
	c2 := New(URLFoldersRule(), Contains("bad", Key{Label: "fallback"}))
	k, err = c2.Classify("bad-url")
	require.NoError(t, err)
	require.Equal(t, "fallback", k.Label)
}

func TestURLFolders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "https://cdn/math/ch3/vid1.mp4", want: Key{Label: "math", Sub: "ch3"}},
		{in: "https://static.example.com/foundation/grade-10/science/1.rational/q.mp4",
			want: Key{Label: "foundation/grade-10/science", Sub: "1.rational"}},
		{in: "https://cdn.example.com/vid.mp4", want: Key{Sub: MiscSub}},
		{in: "  https://cdn.example.com/a/b.mp4  ", want: Key{Label: "", Sub: "a"}},
		{in: "", wantErr: true},
		{in: "bad-url", wantErr: true},
		{in: "https://cdn.example.com/", wantErr: true},
		{in: "://nope", wantErr: true},
	}
	for _, tt := range tests {
		got, err := URLFolders(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrMalformedRecord, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		require.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestGroupBy_URLScenario(t *testing.T) {
	t.Parallel()

	recs := []record.Record{
		{"id": 1, "url": "https://cdn/math/ch3/vid1.mp4"},
		{"id": 2, "url": "https://cdn/math/ch3/vid2.mp4"},
		{"id": 3, "url": "bad-url"},
	}
	c := New(URLFoldersRule())

	var malformed []any
	g := GroupBy(recs, func(r record.Record) (Key, error) {
		return c.Classify(r.String("url"))
	}, func(_ int, r record.Record, err error) {
		if errors.Is(err, ErrMalformedRecord) {
			malformed = append(malformed, r.ID())
		}
	})

	require.Equal(t, []Key{{Label: "math", Sub: "ch3"}, Unclassified}, g.Keys())
	math := g.Get(Key{Label: "math", Sub: "ch3"})
	require.Len(t, math, 2)
	require.Equal(t, 1, math[0].ID())
	require.Equal(t, 2, math[1].ID())
	require.Len(t, g.Get(Unclassified), 1)
	require.Equal(t, []any{3}, malformed)
	require.Equal(t, 3, g.Total())
}

func TestGroup_PreservesFirstSeenOrder(t *testing.T) {
	t.Parallel()

	in := []string{"b1", "a1", "b2", "c1", "a2"}
	build := func() *Group[string] {
		return GroupBy(in, func(s string) (Key, error) {
			return Key{Label: s[:1]}, nil
		}, nil)
	}

	g1, g2 := build(), build()
	require.Equal(t, g1.Keys(), g2.Keys())
	require.Equal(t, []Key{{Label: "b"}, {Label: "a"}, {Label: "c"}}, g1.Keys())
	require.Equal(t, []string{"b1", "b2"}, g1.Get(Key{Label: "b"}))
	require.Equal(t, []string{"a1", "a2"}, g1.Get(Key{Label: "a"}))

	var seen []string
	g1.Each(func(k Key, m []string) { seen = append(seen, k.Label+":"+strings.Join(m, ",")) })
	require.Equal(t, []string{"b:b1,b2", "a:a1,a2", "c:c1"}, seen)
}

func TestGroup_Split(t *testing.T) {
	t.Parallel()

	g := NewGroup[int]()
	g.Add(Key{Label: "x"}, 1)
	g.Add(Unclassified, 2)
	g.Add(Key{Label: "x"}, 3)

	ok, review := g.Split()
	require.Equal(t, []Key{{Label: "x"}}, ok.Keys())
	require.Equal(t, []int{1, 3}, ok.Get(Key{Label: "x"}))
	require.Equal(t, []int{2}, review.Get(Unclassified))
}

func TestParseRules(t *testing.T) {
	t.Parallel()

	doc := `
rules:
  - contains_any: ["the living world", "plant kingdom"]
    label: "11"
  - regex: 'c(\d+)q'
    label: 'Chapter-$1'
  - contains: reproduction
    label: "12"
    primary_only: true
  - structural: url_folders
`
	rules, err := ParseRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 5)
	require.Equal(t, KindContains, rules[0].Kind)
	require.Equal(t, "plant kingdom", rules[1].Needle)
	require.Equal(t, KindRegex, rules[2].Kind)
	require.True(t, rules[3].PrimaryOnly)
	require.Equal(t, KindStructural, rules[4].Kind)

	k, err := New(rules...).Classify("Plant_Kingdom.xlsx")
	require.NoError(t, err)
	require.Equal(t, "11", k.Label)
}

func TestParseRules_Invalid(t *testing.T) {
	t.Parallel()

	bad := []string{
		"rules:\n  - label: x\n",
		"rules:\n  - contains: a\n    regex: b\n    label: x\n",
		"rules:\n  - contains: a\n",
		"rules:\n  - regex: '('\n    label: x\n",
		"rules:\n  - structural: nope\n",
		"rules:\n  - contains: a\n    label: x\n    colour: red\n",
	}
	for _, doc := range bad {
		_, err := ParseRules(strings.NewReader(doc))
		require.Error(t, err, "doc %q", doc)
	}

	rules, err := ParseRules(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, rules)
}
