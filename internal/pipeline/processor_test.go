package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/labslipflow/internal/document"
)

func newTestProcessor() *Processor {
	return NewProcessor(document.Read, nil, nil)
}

func collect(snaps *[]Progress) ProgressFunc {
	return func(p Progress) { *snaps = append(*snaps, p) }
}

func TestProcessPageBreakDocument(t *testing.T) {
	doc := strings.Join([]string{
		slip("Nguyễn Văn A", "XN001"),
		slip("Trần Thị B", "XN002"),
		slip("Lê Văn C", "XN003"),
	}, document.PageBreakMarker)

	var snaps []Progress
	out, err := newTestProcessor().Process(context.Background(), []byte(doc), "slips.txt", collect(&snaps))
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalSections)
	assert.Equal(t, 0, out.ErrorCount)
	assert.Equal(t, StrategyPageBreak, out.Strategy)
	require.Len(t, out.Records, 3)
	assert.Equal(t, Record{FullName: "Nguyễn Văn A", Code: "XN001", Content: out.Records[0].Content, Position: 1}, out.Records[0])
	assert.Equal(t, "XN003", out.Records[2].Code)
	assert.Equal(t, 3, out.Records[2].Position)
}

func TestProcessCountsMisses(t *testing.T) {
	doc := strings.Join([]string{
		slip("Nguyễn Văn A", "XN001"),
		"Họ và tên: Người Không Có\n" + filler,
		"nothing recognizable\n" + filler,
		slip("Lê Văn C", "XN003"),
	}, document.PageBreakMarker)

	out, err := newTestProcessor().Process(context.Background(), []byte(doc), "slips.txt", nil)
	require.NoError(t, err)

	n := out.TotalSections
	assert.Equal(t, 4, n)
	assert.Equal(t, 2, out.ErrorCount)
	assert.Equal(t, n, len(out.Records)+out.ErrorCount)

	seen := map[int]bool{}
	for _, r := range out.Records {
		assert.False(t, seen[r.Position], "duplicate position %d", r.Position)
		seen[r.Position] = true
		assert.GreaterOrEqual(t, r.Position, 1)
		assert.LessOrEqual(t, r.Position, n)
	}
	assert.Equal(t, []int{1, 4}, []int{out.Records[0].Position, out.Records[1].Position})
}

func TestProcessProgressSequence(t *testing.T) {
	doc := slip("A", "1") + document.PageBreakMarker + "no labels at all\n" + filler

	var snaps []Progress
	_, err := newTestProcessor().Process(context.Background(), []byte(doc), "slips.txt", collect(&snaps))
	require.NoError(t, err)

	stages := make([]Stage, len(snaps))
	for i, s := range snaps {
		stages[i] = s.Stage
	}
	assert.Equal(t, []Stage{
		StageStarting, StageSplitting, StageExtracting, StageExtracting, StageFinalizing, StageDone,
	}, stages)

	first := snaps[2]
	assert.Equal(t, 2, first.TotalSections)
	assert.Equal(t, 0, first.ProcessedSections)
	assert.Equal(t, "processing section 1/2", first.StatusMessage)

	second := snaps[3]
	assert.Equal(t, 1, second.ProcessedSections)
	assert.Equal(t, 1, second.ExtractedCount)
	assert.Equal(t, "processing section 2/2", second.StatusMessage)

	last := snaps[len(snaps)-1]
	assert.Equal(t, Progress{
		Stage:             StageDone,
		TotalSections:     2,
		ProcessedSections: 2,
		ExtractedCount:    1,
		ErrorCount:        1,
		StatusMessage:     "document processing complete",
	}, last)
}

func TestProcessUnstructuredDocument(t *testing.T) {
	doc := strings.Repeat("dữ liệu không có nhãn nào cả. ", 80)

	out, err := newTestProcessor().Process(context.Background(), []byte(doc), "slips.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyChunk, out.Strategy)
	assert.LessOrEqual(t, out.TotalSections, 5)
	assert.Empty(t, out.Records)
	assert.Equal(t, out.TotalSections, out.ErrorCount)
}

func TestProcessInputError(t *testing.T) {
	var snaps []Progress
	out, err := newTestProcessor().Process(context.Background(), []byte("garbage"), "slips.docx", collect(&snaps))
	assert.Nil(t, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInput)
	assert.Equal(t, StageFailed, snaps[len(snaps)-1].Stage)
}

func TestProcessRecoversPanics(t *testing.T) {
	calls := 0
	panicky := matcherFunc(func(text string) (string, bool) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return "X", true
	})
	p := NewProcessor(document.Read, &Extractor{Names: []Matcher{panicky}, Codes: []Matcher{stubMatcher{"C", true}}}, nil)

	doc := slip("A", "1") + document.PageBreakMarker + slip("B", "2")
	out, err := p.Process(context.Background(), []byte(doc), "slips.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out.ErrorCount)
	require.Len(t, out.Records, 1)
	assert.Equal(t, 2, out.Records[0].Position)
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := slip("A", "1") + document.PageBreakMarker + slip("B", "2")
	_, err := newTestProcessor().Process(ctx, []byte(doc), "slips.txt", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

type matcherFunc func(string) (string, bool)

func (f matcherFunc) Match(text string) (string, bool) { return f(text) }
