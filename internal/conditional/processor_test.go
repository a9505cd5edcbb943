package conditional

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/preproc/internal/edit"
)

func join(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// process runs one scan and returns the output text, or the input when
// nothing changed.
func process(t *testing.T, p *Processor, text string) string {
	t.Helper()
	res, err := p.Process(text, "src/app.js")
	require.NoError(t, err)
	if res == nil {
		return text
	}
	return res.Text
}

var blockInput = join(
	"function f() {",
	"    /*[dbg]{*/",
	"    if (x) {",
	"        log(x);",
	"    }",
	"    /*}*/",
	"    return 1;",
	"}",
)

func TestBlockDisallowed(t *testing.T) {
	p := New(NewRegistry(false))
	res, err := p.Process(blockInput, "src/app.js")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, join(
		"function f() {",
		"    ///*[dbg]{*/",
		"    //if (x) {",
		"    //    log(x);",
		"    //}",
		"    ///*}*/",
		"    return 1;",
		"}",
	), res.Text)

	assert.Len(t, res.Edits, 5)
	applied, err := edit.Apply(blockInput, res.Edits)
	require.NoError(t, err)
	assert.Equal(t, res.Text, applied)
}

func TestBlockAllowed(t *testing.T) {
	reg := NewRegistry(false)
	reg.Define("dbg")
	res, err := New(reg).Process(blockInput, "src/app.js")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestBlockSingleLineSpan(t *testing.T) {
	p := New(NewRegistry(false))
	got := process(t, p, "  /*[dbg]{*/ line1\n  line2 /*}*/\n")
	assert.Equal(t, "  ///*[dbg]{*/ line1\n  //line2 /*}*/\n", got)
}

func TestNestedOuterDecides(t *testing.T) {
	input := join("/*[a]{*/", "/*[b]{*/", "x", "/*}*/", "/*}*/")

	reg := NewRegistry(false)
	reg.Define("b")
	got := process(t, New(reg), input)
	assert.Equal(t, join("///*[a]{*/", "///*[b]{*/", "//x", "///*}*/", "///*}*/"), got)

	// An allowed outer block leaves inner blocks alone.
	reg = NewRegistry(false)
	reg.Define("a")
	assert.Equal(t, input, process(t, New(reg), input))
}

func TestInlineToggle(t *testing.T) {
	reg := NewRegistry(false)
	reg.Define("a")
	p := New(reg)

	assert.Equal(t, "    // debug(x); /*[dbg]{}*/\n", process(t, p, "    debug(x); /*[dbg]{}*/\n"))
	assert.Equal(t, "ok(); /*[a]{}*/\n", process(t, p, "ok(); /*[a]{}*/\n"))
	assert.Equal(t, "always(); /*{}*/\n", process(t, p, "always(); /*{}*/\n"))

	// Every marker on the line must allow.
	assert.Equal(t, "// /*[a]{}*/ /*[b]{}*/ x\n", process(t, p, "/*[a]{}*/ /*[b]{}*/ x\n"))
	assert.Equal(t, "/*[a]{}*/ /*[a]{}*/ x\n", process(t, p, "/*[a]{}*/ /*[a]{}*/ x\n"))
}

func TestInlineInsideDisallowedBlock(t *testing.T) {
	p := New(NewRegistry(false))
	got := process(t, p, join("/*[a]{*/", "x(); /*[b]{}*/", "/*}*/"))
	assert.Equal(t, join("///*[a]{*/", "//// x(); /*[b]{}*/", "///*}*/"), got)
}

func TestDirectivesAreForwardOnly(t *testing.T) {
	reg := NewRegistry(false)
	p := New(reg)

	got := process(t, p, join("a(); /*[dbg]{}*/", "/*<dbg>*/", "b(); /*[dbg]{}*/"))
	assert.Equal(t, join("// a(); /*[dbg]{}*/", "/*<dbg>*/", "b(); /*[dbg]{}*/"), got)
	assert.True(t, reg.Has("dbg"))
}

func TestDirectivesPersistAcrossArtifacts(t *testing.T) {
	reg := NewRegistry(false)
	var hooked []string
	p := New(reg, WithDefineHook(func(id string, names []string) {
		hooked = append(hooked, id+":"+strings.Join(names, ","))
	}))

	res, err := p.Process("/*<a, b>*/\n/*[c]<>*/\n", "first.js")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{"first.js:a,b,c"}, hooked)

	input := "x(); /*[a, b, c]{}*/\n"
	res, err = p.Process(input, "second.js")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []string{"a", "b", "c"}, reg.Names())
}

func TestFailedScanCommitsNothing(t *testing.T) {
	reg := NewRegistry(false)
	p := New(reg)

	_, err := p.Process("/*<x>*/\n/*}*/\n", "bad.js")
	require.Error(t, err)
	assert.False(t, reg.Has("x"))
}

func TestReleaseMode(t *testing.T) {
	reg := NewRegistry(true)
	reg.Define("dbg")
	p := New(reg)

	got := process(t, p, join("/*{*/", "code();", "/*}*/"))
	assert.Equal(t, join("///*{*/", "//code();", "///*}*/"), got)

	assert.Equal(t, "// x(); /*[dbg]{}*/\n", process(t, p, "x(); /*[dbg]{}*/\n"))
}

func TestMismatchMissingOpen(t *testing.T) {
	_, err := New(NewRegistry(false)).Process("ok\n/*}*/ \n", "a.js")
	require.Error(t, err)
	assert.True(t, IsMismatchedBlockError(err))

	var me *MismatchedBlockError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeMissingOpen, me.Code)
	assert.Equal(t, 2, me.Line)
	assert.Equal(t, "MISSING_OPEN: a.js:2: closing marker with no matching opener", me.Error())
}

func TestMismatchMissingClose(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := New(NewRegistry(false), WithLogger(zap.New(core)))

	_, err := p.Process(join("/*[a]{*/", "/*[b]{*/", "/*}*/"), "a.js")
	require.Error(t, err)

	var me *MismatchedBlockError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeMissingClose, me.Code)
	assert.Equal(t, 1, me.Depth)
	assert.Equal(t, []string{
		"    : >>> 1: /*[a]{*/",
		"    :     >>> 2: /*[b]{*/",
		"    :     <<< 3: /*}*/",
	}, me.Trace)

	// The trace is emitted before the error is returned.
	entries := logs.FilterMessage("nesting").All()
	require.Len(t, entries, 3)
	assert.Equal(t, me.Trace[0], entries[0].ContextMap()["trace"])
}

func TestMismatchDoesNotApplyPartialBlocks(t *testing.T) {
	res, err := New(NewRegistry(false)).Process(join("/*[a]{*/", "x", "/*}*/", "/*[a]{*/"), "a.js")
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestIdempotent(t *testing.T) {
	inputs := []string{
		blockInput,
		join("/*[a]{*/", "/*[b]{*/", "x", "/*}*/", "/*}*/"),
		"    debug(x); /*[dbg]{}*/\n",
		join("    /*[a]{*/", "y", "", "    /*}*/"),
	}
	for _, input := range inputs {
		p := New(NewRegistry(false))
		once := process(t, p, input)
		require.NotEqual(t, input, once)

		res, err := p.Process(once, "src/app.js")
		require.NoError(t, err)
		assert.Nil(t, res, "second pass changed %q", once)
	}
}

func TestLineEndingsPreserved(t *testing.T) {
	p := New(NewRegistry(false))
	got := process(t, p, "a\r\n/*[x]{}*/ b\r\nc")
	assert.Equal(t, "a\r\n// /*[x]{}*/ b\r\nc", got)
}

func TestNoMarkersUnchanged(t *testing.T) {
	res, err := New(NewRegistry(false)).Process("plain\ntext\n", "a.js")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestVerboseLogsTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := New(NewRegistry(false), WithLogger(zap.New(core)), WithVerbose(true))

	_ = process(t, p, join("/*[a]{*/", "x", "/*}*/", "y(); /*{}*/"))

	assert.Equal(t, 2, logs.FilterMessage("nesting").FilterLevelExact(zapcore.InfoLevel).Len())
	markers := logs.FilterMessage("marker").All()
	require.Len(t, markers, 2)
	assert.Equal(t, false, markers[0].ContextMap()["allowed"])
	assert.Equal(t, true, markers[1].ContextMap()["allowed"])
}
