package prompt

import (
	"embed"
	"io/fs"
	"strings"
)

//go:embed instructions
var instructionsFS embed.FS

// Instructions loads the static instructional library. Each markdown
// file under instructions/ becomes a string entry in a nested map keyed
// by its path segments, so templates can reference, for example,
// {{ .instructions.actions.format }}.
func Instructions() map[string]any {
	root := make(map[string]any)
	_ = fs.WalkDir(instructionsFS, "instructions", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return err
		}
		data, readErr := instructionsFS.ReadFile(p)
		if readErr != nil {
			return readErr
		}

		rel := strings.TrimSuffix(strings.TrimPrefix(p, "instructions/"), ".md")
		segments := strings.Split(rel, "/")
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = strings.TrimSpace(string(data))
		return nil
	})
	return root
}
