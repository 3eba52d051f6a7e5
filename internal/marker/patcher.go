// Package marker maintains named, delimited blocks inside text files such as
// .htaccess:
//
//	# BEGIN <marker>
//	<content>
//	# END <marker>
package marker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"devassist/internal/fsutil"
)

// ErrFileNotFound is returned when the target file does not exist. Blocks are
// never written into a file that devassist would have to create.
var ErrFileNotFound = errors.New("file not found")

// Patcher inserts, replaces and removes marker blocks on disk.
type Patcher struct {
	FS *fsutil.FS
}

// New returns a Patcher writing through fs
func New(fs *fsutil.FS) *Patcher {
	return &Patcher{FS: fs}
}

// Upsert replaces the block for marker with content, appending a new block
// when none exists. Empty content removes the block.
func (p *Patcher) Upsert(path, marker, content string) error {
	if !p.FS.Exists(path) {
		return fmt.Errorf("%s: %w", path, ErrFileNotFound)
	}
	_, err := p.FS.Update(path, func(current string) (string, error) {
		return Apply(current, marker, content), nil
	})
	return err
}

// Remove deletes the block for marker, delimiters included. A missing block
// is a successful no-op.
func (p *Patcher) Remove(path, marker string) error {
	return p.Upsert(path, marker, "")
}

// Has reports whether path contains a block for marker
func (p *Patcher) Has(path, marker string) (bool, error) {
	if !p.FS.Exists(path) {
		return false, nil
	}
	text, err := p.FS.ReadText(path)
	if err != nil {
		return false, err
	}
	return Pattern(marker).MatchString(text), nil
}

// Pattern matches the whole block for marker, from the BEGIN line through the
// END line, plus the line break that follows it.
func Pattern(marker string) *regexp.Regexp {
	q := regexp.QuoteMeta(marker)
	return regexp.MustCompile(`(?ms)^# BEGIN ` + q + `[ \t]*\r?$.*?^# END ` + q + `[ \t]*(?:\r?\n|\r?$)`)
}

// Render returns the delimited block for marker without a trailing newline
func Render(marker, content string) string {
	return render(marker, content, "\n")
}

// render joins the block's lines with eol, content lines included
func render(marker, content, eol string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if eol != "\n" {
		content = strings.ReplaceAll(content, "\n", eol)
	}
	return "# BEGIN " + marker + eol + content + eol + "# END " + marker
}

// lineEnding is CRLF when the file already uses it
func lineEnding(text string) string {
	if strings.Contains(text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// Apply is the pure text transformation behind Upsert.
func Apply(text, marker, content string) string {
	re := Pattern(marker)
	locs := re.FindAllStringIndex(text, -1)
	eol := lineEnding(text)

	if len(locs) == 0 {
		if content == "" {
			return text
		}
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += eol
		}
		return text + render(marker, content, eol) + eol
	}

	var b strings.Builder
	prev := 0
	for i, loc := range locs {
		b.WriteString(text[prev:loc[0]])
		if i == 0 && content != "" {
			b.WriteString(render(marker, content, eol))
			// Keep whatever line break closed the old block.
			b.WriteString(trailingBreak(text[loc[0]:loc[1]]))
		}
		prev = loc[1]
	}
	b.WriteString(text[prev:])
	return b.String()
}

func trailingBreak(block string) string {
	switch {
	case strings.HasSuffix(block, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(block, "\n"):
		return "\n"
	default:
		return ""
	}
}
