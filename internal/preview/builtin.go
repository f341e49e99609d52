package preview

import (
	"bufio"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
)

// RawBytes is how much of a binary file the built-in display shows.
const RawBytes = 512

func (c *Cache) builtin(req Request) []string {
	if req.IsBinary {
		return hexHead(req.Path)
	}
	text, err := readLines(req.Path, c.opts.MaxLines)
	if err != nil {
		return []string{"<" + err.Error() + ">"}
	}
	switch {
	case isMarkdown(req.Extension):
		if out, err := renderMarkdown(text, req.Width); err == nil {
			text = out
		}
	case c.opts.Highlight:
		if out, ok := highlight(req.Name, text); ok {
			text = out
		}
	}
	return c.clip(text, req.Width)
}

func hexHead(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return []string{"<" + err.Error() + ">"}
	}
	defer f.Close()
	buf := make([]byte, RawBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return []string{"<" + err.Error() + ">"}
	}
	return strings.Split(strings.TrimRight(hex.Dump(buf[:n]), "\n"), "\n")
}

func readLines(path string, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	var b strings.Builder
	r := bufio.NewReader(f)
	for n := 0; limit <= 0 || n < limit; n++ {
		line, err := r.ReadString('\n')
		b.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func isMarkdown(ext string) bool {
	switch strings.ToLower(ext) {
	case "md", "markdown", "mdown":
		return true
	}
	return false
}

func renderMarkdown(text string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

func highlight(name, text string) (string, bool) {
	lexer := lexers.Match(name)
	if lexer == nil {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		return "", false
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, text)
	if err != nil {
		return "", false
	}
	var b strings.Builder
	if err := formatters.TTY256.Format(&b, styles.Get("monokai"), it); err != nil {
		return "", false
	}
	return b.String(), true
}
