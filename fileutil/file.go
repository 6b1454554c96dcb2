// Package fileutil contains code to work with shell files, also known
// as shell scripts.
package fileutil

import (
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/corrosive-labs/vsh/vfs"
)

var (
	// shebangRe accepts an optional run of spaces/tabs (never a form feed,
	// which Go's \s would otherwise allow) after "#!", an optional "/usr"
	// before "bin", and an optional "env " indirection, then captures the
	// shell's name (sh, bash, mksh, bats or zsh) so Shebang can report which
	// one was named; the name must be followed by whitespace or the end.
	shebangRe = regexp.MustCompile(`^#![ \t]*/(usr/)?bin/(env[ \t]+)?(sh|bash|mksh|bats|zsh)(\s|$)`)
	extRe     = regexp.MustCompile(`\.(sh|bash)$`)
)

// Shebang returns the interpreter named by bs's shebang line, such as "bash"
// or "zsh", or "" if bs doesn't start with one recognized as a shell
// invocation (directly under /bin or /usr/bin, optionally via "env").
func Shebang(bs []byte) string {
	m := shebangRe.FindSubmatch(bs)
	if m == nil {
		return ""
	}
	return string(m[3])
}

// HasShebang reports whether bs begins with a shell shebang line.
// It supports variations with /usr and env.
func HasShebang(bs []byte) bool {
	return Shebang(bs) != ""
}

// ScriptConfidence defines how likely a file is to be a shell script,
// from complete certainty that it is not one to complete certainty that
// it is one.
type ScriptConfidence int

const (
	// ConfNotScript describes files which are definitely not shell scripts,
	// such as non-regular files or files with a non-shell extension.
	ConfNotScript ScriptConfidence = iota

	// ConfIfShebang describes files which might be shell scripts, depending
	// on the shebang line in the file's contents. Since the name alone can't
	// decide, the caller must read the first line to be sure.
	ConfIfShebang

	// ConfIsScript describes files which are definitely shell scripts,
	// which are regular files with a valid shell extension.
	ConfIsScript
)

// nameConfidence applies the extension/dotfile heuristics shared by every
// CouldBeScript variant below, given just a name and whether the entry is a
// directory or symlink.
func nameConfidence(name string, isDir, isSymlink bool) ScriptConfidence {
	switch {
	case isDir, name == "" || name[0] == '.':
		return ConfNotScript
	case isSymlink:
		return ConfNotScript
	case extRe.MatchString(name):
		return ConfIsScript
	case strings.IndexByte(name, '.') > 0:
		return ConfNotScript // different extension
	default:
		return ConfIfShebang
	}
}

// CouldBeScript is a shortcut for CouldBeScript2(fs.FileInfoToDirEntry(info)).
//
// Deprecated: prefer CouldBeScript2, which usually requires fewer syscalls.
func CouldBeScript(info os.FileInfo) ScriptConfidence {
	return nameConfidence(info.Name(), info.IsDir(), info.Mode()&os.ModeSymlink != 0)
}

// CouldBeScript2 reports how likely a directory entry is to be a shell script.
// It discards directories, symlinks, hidden files and files with non-shell
// extensions.
func CouldBeScript2(entry fs.DirEntry) ScriptConfidence {
	return nameConfidence(entry.Name(), entry.IsDir(), entry.Type()&os.ModeSymlink != 0)
}

// CouldBeScriptVFS is CouldBeScript2's counterpart for entries of a
// sandboxed [vfs.FileSystem] tree, which are [vfs.DirEntry] values rather
// than fs.DirEntry.
func CouldBeScriptVFS(entry vfs.DirEntry) ScriptConfidence {
	return nameConfidence(entry.Name, entry.IsDir, entry.IsLink)
}
