package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShapes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`$CI_COMMIT_BRANCH == "main"`, `$CI_COMMIT_BRANCH == "main"`},
		{`${CI_COMMIT_BRANCH} != 'dev'`, `$CI_COMMIT_BRANCH != "dev"`},
		{`$A || $B && $C`, `($A || ($B && $C))`},
		{`($A || $B) && $C`, `(($A || $B) && $C)`},
		{`$REF =~ /^release-.*$/i`, `$REF =~ /^release-.*$/i`},
		{`$A == null`, `$A == null`},
		{`$A =~ $PATTERN`, `$A =~ $PATTERN`},
		{`$PATH =~ /a\/b/`, `$PATH =~ /a\/b/`},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{``, "empty expression"},
		{`$A ==`, "expected operand"},
		{`$A == "x`, "unterminated string"},
		{`$A =~ /x`, "unterminated pattern"},
		{`$A =~ "x"`, "must be a pattern or a variable"},
		{`$A == /x/`, "pattern used with =="},
		{`/x/ =~ $A`, "pattern must be on the right"},
		{`/x/`, "pattern used outside"},
		{`($A == "x"`, "expected )"},
		{`$A == "x")`, "unexpected )"},
		{`$A = "x"`, "unexpected character"},
		{`$A == "a" == "b"`, "cannot be chained"},
		{`$A =~ /x/q`, "unknown pattern flag"},
		{`$A =~ /(/`, "invalid pattern"},
		{`${}`, "invalid variable name"},
		{`$`, "expected variable name"},
		{`$A $B`, "unexpected variable $B"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Parse(tt.src)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Contains(t, se.Message, tt.message)
		})
	}
}

func TestParseNestingLimit(t *testing.T) {
	src := ""
	for i := 0; i < maxNesting+1; i++ {
		src += "("
	}
	src += "$A"
	for i := 0; i < maxNesting+1; i++ {
		src += ")"
	}
	_, err := Parse(src)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "nested deeper")
}

func TestEvalCoercion(t *testing.T) {
	vars := MapLookup(map[string]string{
		"BRANCH":  "main",
		"EMPTY":   "",
		"NUM":     "10",
		"FLOAT":   "10.0",
		"PATTERN": "/^ma/",
		"BAD":     "main",
	})

	tests := []struct {
		src  string
		want bool
	}{
		{`$BRANCH == "main"`, true},
		{`$BRANCH != "main"`, false},
		{`$UNSET == ""`, true},
		{`$UNSET == null`, true},
		{`$EMPTY == null`, false},
		{`$BRANCH == null`, false},
		{`null == null`, true},
		{`$UNSET != null`, false},
		{`$NUM == "10"`, true},
		{`$NUM == $FLOAT`, true},
		{`$NUM == "1e1"`, true},
		{`$BRANCH`, true},
		{`$EMPTY`, false},
		{`$UNSET`, false},
		{`$BRANCH =~ /^MA/i`, true},
		{`$BRANCH =~ /^dev/`, false},
		{`$BRANCH !~ /^dev/`, true},
		{`$UNSET =~ /.*/`, false},
		{`$UNSET !~ /.*/`, true},
		{`$BRANCH =~ $PATTERN`, true},
		{`$BRANCH =~ $UNSET`, false},
		{`$BRANCH == "dev" || $NUM == "10"`, true},
		{`$BRANCH == "main" && $EMPTY`, false},
		{`($BRANCH == "dev" || $BRANCH == "main") && $NUM`, true},
		{`'single' == "single"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := EvalString(tt.src, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalMatchAgainstNonPatternVariable(t *testing.T) {
	_, err := EvalString(`$A =~ $B`, MapLookup(map[string]string{"A": "x", "B": "plain"}))
	var ee *EvalError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Message, "not a valid pattern")
}

func TestEvalShortCircuits(t *testing.T) {
	var looked []string
	lookup := func(name string) (string, bool) {
		looked = append(looked, name)
		return "x", true
	}

	ok, err := Eval(MustParse(`$A || $B`), lookup)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"A"}, looked, "right side of a true || is not evaluated")

	looked = nil
	ok, err = Eval(MustParse(`$A == "y" && $B`), lookup)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"A"}, looked)
}

func TestVariables(t *testing.T) {
	n := MustParse(`$A == "x" && ($B =~ /y/ || $A)`)
	assert.Equal(t, []string{"A", "B"}, Variables(n))
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("/^v[0-9]+/i")
	require.NoError(t, err)
	assert.Equal(t, "i", p.Flags)
	assert.True(t, p.Regexp.MatchString("V12"))

	_, err = ParsePattern("main")
	require.Error(t, err)
	_, err = ParsePattern("/a/ trailing")
	require.Error(t, err)
}
