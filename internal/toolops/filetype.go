package toolops

import "strings"

// codeExtensions covers the languages coding assistants commonly touch.
var codeExtensions = map[string]struct{}{
	"go": {}, "rs": {}, "py": {}, "js": {}, "jsx": {}, "ts": {}, "tsx": {},
	"java": {}, "kt": {}, "c": {}, "h": {}, "cpp": {}, "hpp": {}, "cc": {},
	"cs": {}, "rb": {}, "php": {}, "swift": {}, "scala": {}, "sh": {},
	"bash": {}, "zsh": {}, "sql": {}, "html": {}, "css": {}, "scss": {},
	"vue": {}, "svelte": {}, "lua": {}, "ex": {}, "exs": {}, "zig": {},
}

// configExtensions covers configuration and manifest formats.
var configExtensions = map[string]struct{}{
	"toml": {}, "yaml": {}, "yml": {}, "json": {}, "ini": {}, "env": {},
	"conf": {}, "cfg": {}, "properties": {}, "lock": {}, "mod": {}, "sum": {},
}

// IsCodeExtension reports whether ext belongs to the known code set.
func IsCodeExtension(ext string) bool {
	_, ok := codeExtensions[strings.ToLower(ext)]
	return ok
}

// IsConfigExtension reports whether ext belongs to the known config set.
func IsConfigExtension(ext string) bool {
	_, ok := configExtensions[strings.ToLower(ext)]
	return ok
}

// extension returns the lowercase extension of path without the dot, or "".
func extension(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	// A dot inside the final path segment only.
	if slash := strings.LastIndexByte(path, '/'); slash > idx {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}
