// Package scripts interprets the declarative preupdateexec/updateexec
// mutation files against an installation. Every section is optional;
// sections run in the fixed order below, and a failure on one key is
// logged and swallowed rather than aborting the script.
package scripts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/IMQS/log"
	"github.com/go-ini/ini"
)

// sectionOrder is the exact order sections are processed in.
var sectionOrder = []string{
	"Delete",
	"Rename",
	"RenameFolder",
	"RenameAndMerge",
	"DeleteFolder",
	"ForceDeleteFolder",
	"DeleteFolderIfEmpty",
	"CreateFolder",
}

// RunFile parses the INI script at scriptPath and applies its sections
// against rootDir, in order, then deletes scriptPath regardless of
// whether individual steps failed.
func RunFile(ctx context.Context, rootDir, scriptPath string, logger *log.Logger) error {
	defer os.Remove(scriptPath)

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		// A script that never downloaded (mirror didn't have one, say) is
		// simply a no-op — scripts are optional per spec.
		return nil
	}
	return Run(ctx, rootDir, data, logger)
}

// Run applies a parsed script's sections against rootDir, in the fixed
// section order, swallowing per-key errors.
func Run(ctx context.Context, rootDir string, data []byte, logger *log.Logger) error {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		logf(logger, "scripts: malformed script, skipping: %v", err)
		return nil
	}

	for _, name := range sectionOrder {
		if ctx.Err() != nil {
			return nil
		}
		if !f.HasSection(name) {
			continue
		}
		sec := f.Section(name)
		for _, key := range sec.Keys() {
			runStep(rootDir, name, key.Name(), key.Value(), logger)
		}
	}
	return nil
}

func logf(logger *log.Logger, format string, args ...interface{}) {
	if logger != nil {
		logger.Warnf(format, args...)
	}
}

func runStep(rootDir, section, key, value string, logger *log.Logger) {
	var err error
	switch section {
	case "Delete":
		err = stepDelete(rootDir, key)
	case "Rename":
		err = stepRename(rootDir, key, value)
	case "RenameFolder":
		err = stepRenameFolder(rootDir, key, value)
	case "RenameAndMerge":
		err = stepRenameAndMerge(rootDir, key, value)
	case "DeleteFolder", "ForceDeleteFolder":
		err = stepDeleteFolder(rootDir, key)
	case "DeleteFolderIfEmpty":
		err = stepDeleteFolderIfEmpty(rootDir, key)
	case "CreateFolder":
		err = stepCreateFolder(rootDir, key)
	}
	if err != nil {
		logf(logger, "scripts: [%v] %v=%v failed: %v", section, key, value, err)
	}
}

func abs(rootDir, rel string) string {
	return filepath.Join(rootDir, filepath.FromSlash(rel))
}

func stepDelete(rootDir, key string) error {
	p := abs(rootDir, key)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(p)
}

func stepRename(rootDir, key, value string) error {
	src := abs(rootDir, key)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := abs(rootDir, value)
	if err := os.MkdirAll(filepath.Dir(dst), 0o775); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func stepRenameFolder(rootDir, key, value string) error {
	src := abs(rootDir, key)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := abs(rootDir, value)
	if err := os.MkdirAll(filepath.Dir(dst), 0o775); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// stepRenameAndMerge: if destDir doesn't exist, behaves like
// RenameFolder. Otherwise every file directly inside key is merged into
// destDir: if a same-named file already exists there the source is
// dropped, else it's moved in.
func stepRenameAndMerge(rootDir, key, value string) error {
	src := abs(rootDir, key)
	dst := abs(rootDir, value)

	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return stepRenameFolder(rootDir, key, value)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		srcFile := filepath.Join(src, entry.Name())
		dstFile := filepath.Join(dst, entry.Name())
		if _, err := os.Stat(dstFile); err == nil {
			if rerr := os.Remove(srcFile); rerr != nil {
				return rerr
			}
			continue
		}
		if err := os.Rename(srcFile, dstFile); err != nil {
			return err
		}
	}
	return nil
}

func stepDeleteFolder(rootDir, key string) error {
	p := abs(rootDir, key)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(p)
}

// stepDeleteFolderIfEmpty deletes a directory only when it contains no
// files — subdirectories don't count against "empty".
func stepDeleteFolderIfEmpty(rootDir, key string) error {
	p := abs(rootDir, key)
	entries, err := os.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return nil
		}
	}
	return os.RemoveAll(p)
}

func stepCreateFolder(rootDir, key string) error {
	p := abs(rootDir, key)
	if _, err := os.Stat(p); err == nil {
		return nil
	}
	return os.MkdirAll(p, 0o775)
}
