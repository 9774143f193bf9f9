package chunker

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/xxxsen/ratrans/internal/model"
)

const (
	DefaultParagraphTarget = 5
	DefaultParagraphMax    = 10
)

// Paragraphs groups blank-line separated blocks into at most maxChunks chunks,
// merging toward len(text)/target characters per chunk.
func (c *Chunker) Paragraphs(ctx context.Context, input string, target, maxChunks int) []model.Chunk {
	if target <= 0 {
		target = DefaultParagraphTarget
	}
	if maxChunks <= 0 {
		maxChunks = DefaultParagraphMax
	}
	paras := splitParagraphs(input)
	if len(paras) == 0 {
		return nil
	}
	groups := paras
	if len(paras) > target {
		groups = mergeParagraphs(paras, utf8.RuneCountInString(input)/target, maxChunks)
	}
	chunks := make([]model.Chunk, 0, len(groups))
	for _, g := range groups {
		chunks = append(chunks, newChunk(g, len(chunks)))
	}
	logutil.GetLogger(ctx).Info("text split into paragraph chunks",
		zap.Int("paragraphs", len(paras)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks
}

func mergeParagraphs(paras []string, targetSize, maxChunks int) []string {
	limit := float64(targetSize) * 1.5
	var (
		out     []string
		current string
	)
	for i, p := range paras {
		if float64(utf8.RuneCountInString(current)+utf8.RuneCountInString(p)) < limit {
			current = joinParagraph(current, p)
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		current = p
		if len(out) >= maxChunks {
			out[len(out)-1] += "\n\n" + strings.Join(paras[i:], "\n\n")
			current = ""
			break
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func joinParagraph(current, p string) string {
	if current == "" {
		return p
	}
	return current + "\n\n" + p
}

// splitParagraphs uses the markdown block structure to find paragraph starts,
// so fenced blocks containing blank lines are kept whole.
func splitParagraphs(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	src := []byte(input)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	starts := []int{0}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		pos, ok := blockStart(n, src)
		if !ok || pos <= starts[len(starts)-1] {
			continue
		}
		starts = append(starts, pos)
	}
	var (
		out     []string
		pending strings.Builder
	)
	for i, start := range starts {
		end := len(src)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		seg := input[start:end]
		pending.WriteString(seg)
		if i+1 < len(starts) && !endsWithBlankLine(seg) {
			continue
		}
		if p := strings.TrimSpace(pending.String()); p != "" {
			out = append(out, p)
		}
		pending.Reset()
	}
	return out
}

func blockStart(n ast.Node, src []byte) (int, bool) {
	pos, ok := firstLine(n)
	if !ok {
		return 0, false
	}
	pos = lineStart(src, pos)
	if n.Kind() == ast.KindFencedCodeBlock && pos > 0 {
		// content starts on the line after the opening fence
		pos = lineStart(src, pos-1)
	}
	return pos, true
}

func firstLine(n ast.Node) (int, bool) {
	if lines := n.Lines(); n.Type() == ast.TypeBlock && lines != nil && lines.Len() > 0 {
		return lines.At(0).Start, true
	}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if child.Type() != ast.TypeBlock {
			continue
		}
		if pos, ok := firstLine(child); ok {
			return pos, true
		}
	}
	return 0, false
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func endsWithBlankLine(seg string) bool {
	trimmed := strings.TrimRightFunc(seg, unicode.IsSpace)
	return strings.Count(seg[len(trimmed):], "\n") >= 2
}
