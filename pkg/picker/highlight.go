package picker

import (
	"strings"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlightLimit caps how much content gets lexed; anything past it is shown
// plain. Large clips are usually logs, not code.
const highlightLimit = 64 * 1024

// highlight renders content with syntax colors when it looks like code,
// otherwise returns it untouched.
func highlight(content string) string {
	if len(content) > highlightLimit {
		return content
	}

	lexer := lexers.Analyse(content)
	if lexer == nil {
		return content
	}

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return content
	}

	var sb strings.Builder
	formatter := formatters.Get("terminal256")
	if err := formatter.Format(&sb, styles.Get("monokai"), iterator); err != nil {
		return content
	}
	return sb.String()
}
