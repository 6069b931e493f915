package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qcjiangqianchen/bolt.diy/internal/artifact"
	"github.com/qcjiangqianchen/bolt.diy/internal/log"
	"github.com/qcjiangqianchen/bolt.diy/internal/parser"
)

const fileBody = "<html>\n<body><h1>hello</h1></body>\n</html>"

const sample = "Sure thing!\n" +
	`<boltArtifact id="todo-app" title="Todo App">` + "\n" +
	`<boltAction type="file" filePath="index.html">` + fileBody + `</boltAction>` + "\n" +
	`<boltAction type="shell">` + "\nnpm install\n" + `</boltAction>` + "\n" +
	`<boltAction type="start">npm run dev</boltAction>` + "\n" +
	`</boltArtifact>` + "\nAll set."

// structural strips ActionStream events: delta granularity legitimately
// depends on chunking, everything else must be chunking-invariant.
func structural(events []parser.Event) []parser.Event {
	var out []parser.Event
	for _, ev := range events {
		if _, ok := ev.(parser.ActionStream); ok {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// deltas concatenates the streamed deltas per action id.
func deltas(events []parser.Event) map[string]string {
	out := make(map[string]string)
	for _, ev := range events {
		if s, ok := ev.(parser.ActionStream); ok {
			out[s.ActionID] += s.Delta
		}
	}
	return out
}

// feed drives the parser with the given chunk sizes, returning accumulated
// visible text and events.
func feed(t *testing.T, p *parser.Parser, msgID, input string, chunk int) (string, []parser.Event) {
	t.Helper()
	var visible strings.Builder
	var events []parser.Event
	for end := chunk; ; end += chunk {
		if end > len(input) {
			end = len(input)
		}
		v, evs := p.Parse(msgID, input[:end])
		visible.WriteString(v)
		events = append(events, evs...)
		if end == len(input) {
			break
		}
	}
	return visible.String(), events
}

func TestParse_WholeStream(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	visible, events := p.Parse("msg-1", sample)

	assert.Equal(t, "Sure thing!\n\nAll set.", visible)
	require.Equal(t, []parser.Event{
		parser.ArtifactOpen{ArtifactID: "todo-app", MessageID: "msg-1", Title: "Todo App", Kind: artifact.KindNormal},
		parser.ActionOpen{ActionID: "msg-1-a1", ArtifactID: "todo-app", MessageID: "msg-1", Action: artifact.FileAction{FilePath: "index.html"}},
		parser.ActionClose{ActionID: "msg-1-a1", ArtifactID: "todo-app", MessageID: "msg-1", Action: artifact.FileAction{FilePath: "index.html", Content: fileBody}},
		parser.ActionOpen{ActionID: "msg-1-a2", ArtifactID: "todo-app", MessageID: "msg-1", Action: artifact.ShellAction{Command: "npm install"}},
		parser.ActionClose{ActionID: "msg-1-a2", ArtifactID: "todo-app", MessageID: "msg-1", Action: artifact.ShellAction{Command: "npm install"}},
		parser.ActionOpen{ActionID: "msg-1-a3", ArtifactID: "todo-app", MessageID: "msg-1", Action: artifact.StartAction{Command: "npm run dev"}},
		parser.ActionClose{ActionID: "msg-1-a3", ArtifactID: "todo-app", MessageID: "msg-1", Action: artifact.StartAction{Command: "npm run dev"}},
		parser.ArtifactClose{ArtifactID: "todo-app", MessageID: "msg-1"},
	}, structural(events))

	assert.Equal(t, fileBody, deltas(events)["msg-1-a1"])
}

func TestParse_IdempotentReplay(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	_, first := p.Parse("msg-1", sample)
	require.NotEmpty(t, first)

	// Same input again: nothing new may fire.
	visible, second := p.Parse("msg-1", sample)
	assert.Empty(t, visible)
	assert.Empty(t, second)
}

func TestParse_OneByteChunks_MatchesWhole(t *testing.T) {
	t.Parallel()

	whole := parser.New(log.NewNop())
	_, wholeEvents := whole.Parse("msg-1", sample)

	chunked := parser.New(log.NewNop())
	visible, chunkedEvents := feed(t, chunked, "msg-1", sample, 1)

	assert.Equal(t, "Sure thing!\n\nAll set.", visible)
	assert.Equal(t, structural(wholeEvents), structural(chunkedEvents))
	assert.Equal(t, fileBody, deltas(chunkedEvents)["msg-1-a1"])
}

func TestParse_EverySplitPoint(t *testing.T) {
	t.Parallel()

	whole := parser.New(log.NewNop())
	_, wholeEvents := whole.Parse("ref", sample)
	want := structural(wholeEvents)

	for split := 1; split < len(sample); split++ {
		p := parser.New(log.NewNop())
		v1, e1 := p.Parse("msg", sample[:split])
		v2, e2 := p.Parse("msg", sample)

		all := append(append([]parser.Event{}, e1...), e2...)
		// Event ids embed the message id; rewrite for comparison.
		assert.Equal(t, renameMsg(want, "ref", "msg"), structural(all), "split at %d", split)
		assert.Equal(t, "Sure thing!\n\nAll set.", v1+v2, "split at %d", split)
		assert.Equal(t, fileBody, deltas(all)["msg-a1"], "split at %d", split)
	}
}

// renameMsg rewrites the message id embedded in reference events so runs
// under different message ids compare equal.
func renameMsg(events []parser.Event, from, to string) []parser.Event {
	swap := func(s string) string { return strings.Replace(s, from, to, 1) }
	out := make([]parser.Event, 0, len(events))
	for _, ev := range events {
		switch e := ev.(type) {
		case parser.ArtifactOpen:
			e.MessageID = swap(e.MessageID)
			out = append(out, e)
		case parser.ArtifactClose:
			e.MessageID = swap(e.MessageID)
			out = append(out, e)
		case parser.ActionOpen:
			e.MessageID = swap(e.MessageID)
			e.ActionID = swap(e.ActionID)
			out = append(out, e)
		case parser.ActionClose:
			e.MessageID = swap(e.MessageID)
			e.ActionID = swap(e.ActionID)
			out = append(out, e)
		default:
			out = append(out, ev)
		}
	}
	return out
}

func TestParse_FileContentWithEmbeddedMarkup(t *testing.T) {
	t.Parallel()

	body := "docs: the stream uses <boltAction type=\"file\"> tags,\n" +
		"and even a bare <boltArtifact id=\"x\"> must stay literal.\n"
	input := `<boltArtifact id="doc" title="Docs">` +
		`<boltAction type="file" filePath="README.md">` + body + `</boltAction>` +
		`</boltArtifact>`

	for _, chunk := range []int{1, 3, 7, len(input)} {
		p := parser.New(log.NewNop())
		_, events := feed(t, p, "m", input, chunk)

		var closed *artifact.FileAction
		for _, ev := range events {
			if c, ok := ev.(parser.ActionClose); ok {
				if f, ok := c.Action.(artifact.FileAction); ok {
					closed = &f
				}
			}
		}
		require.NotNil(t, closed, "chunk size %d", chunk)
		assert.Equal(t, body, closed.Content, "chunk size %d", chunk)
		assert.Equal(t, body, deltas(events)["m-a1"], "chunk size %d", chunk)
	}
}

func TestParse_EmptyFileAction(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	input := `<boltArtifact id="a" title="T"><boltAction type="file" filePath="empty.txt"></boltAction></boltArtifact>`
	_, events := p.Parse("m", input)

	require.Len(t, structural(events), 4)
	closeEv := structural(events)[2].(parser.ActionClose)
	assert.Equal(t, artifact.FileAction{FilePath: "empty.txt"}, closeEv.Action)
	assert.Empty(t, deltas(events))
}

func TestParse_DeployActionAttributes(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	input := `<boltArtifact id="a" title="T"><boltAction type="deploy" stage="preview" source="dist"></boltAction></boltArtifact>`
	_, events := p.Parse("m", input)

	open := structural(events)[1].(parser.ActionOpen)
	assert.Equal(t, artifact.DeployAction{Source: "dist", Stage: "preview"}, open.Action)
}

func TestParse_AttributeReorderAndWhitespace(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	input := "<boltArtifact   title='My App'  id=\"app-1\" >" +
		"<boltAction   filePath='src/a.js'\n  type=\"file\" >x</boltAction>" +
		"</boltArtifact>"
	_, events := p.Parse("m", input)

	st := structural(events)
	require.Len(t, st, 4)
	openEv := st[0].(parser.ArtifactOpen)
	assert.Equal(t, "app-1", openEv.ArtifactID)
	assert.Equal(t, "My App", openEv.Title)
	action := st[1].(parser.ActionOpen)
	assert.Equal(t, artifact.FileAction{FilePath: "src/a.js"}, action.Action)
}

func TestParse_UnknownTagsPassThrough(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	input := "a <div>x</div> & <boltzmann> b"
	visible, events := p.Parse("m", input)

	assert.Equal(t, input, visible)
	assert.Empty(t, events)
}

func TestParse_UnmatchedCloseDegradesToText(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	visible, events := p.Parse("m", "before </boltArtifact> after")

	assert.Equal(t, "before </boltArtifact> after", visible)
	assert.Empty(t, events)
}

func TestParse_StandaloneArtifact(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	_, events := p.Parse("m", `<boltArtifact id="x" title="X" type="standalone"></boltArtifact>`)
	open := structural(events)[0].(parser.ArtifactOpen)
	assert.Equal(t, artifact.KindStandalone, open.Kind)
}

func TestParse_InvalidFilePathDropsAction(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	input := `<boltArtifact id="a" title="T"><boltAction type="file" filePath="../../etc/passwd">data</boltAction></boltArtifact>`
	_, events := p.Parse("m", input)

	// Only the artifact open/close survive; the traversal path never
	// reaches the runner.
	require.Len(t, structural(events), 2)
	assert.Empty(t, deltas(events))
}

func TestFinalize_FlushesUnclosedAction(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	input := `<boltArtifact id="a" title="T"><boltAction type="file" filePath="x.txt">partial conten`
	_, events := p.Parse("m", input)
	_, final := p.Finalize("m", input)

	all := append(events, final...)
	var content string
	var artifactClosed bool
	for _, ev := range all {
		switch e := ev.(type) {
		case parser.ActionClose:
			content = e.Action.(artifact.FileAction).Content
		case parser.ArtifactClose:
			artifactClosed = true
		}
	}
	assert.Equal(t, "partial conten", content)
	assert.True(t, artifactClosed)

	// Finalize discarded the state; a replay parses from scratch.
	_, replay := p.Parse("m", input)
	assert.NotEmpty(t, replay)
}

func TestParse_SplitInsideCloseTagStaysContent(t *testing.T) {
	t.Parallel()
	p := parser.New(log.NewNop())

	// The body legitimately contains "</bolt" followed by ordinary text.
	body := "a </boltb c"
	input := `<boltArtifact id="a" title="T"><boltAction type="file" filePath="f">` + body + `</boltAction></boltArtifact>`

	// Split right after the ambiguous "</bolt".
	cut := strings.Index(input, "</boltb") + len("</bolt")
	_, e1 := p.Parse("m", input[:cut])
	_, e2 := p.Parse("m", input)

	assert.Equal(t, body, deltas(append(e1, e2...))["m-a1"])
}
