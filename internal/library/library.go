// Package library discovers stories on disk and loads their scripts.
//
// A library is a directory whose immediate subdirectories are stories. A
// story directory holds a cyoa.toml manifest and a scripts/ directory of Lua
// modules:
//
//	stories/
//	  the-cave/
//	    cyoa.toml
//	    scripts/
//	      main.lua
//	      rooms.lua
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/louisbranch/cyoa/internal/game"
	apperrors "github.com/louisbranch/cyoa/internal/platform/errors"
)

const (
	// ManifestName is the file that marks a directory as a story.
	ManifestName = "cyoa.toml"
	// ScriptsDir holds a story's Lua modules.
	ScriptsDir = "scripts"
	// ScriptExt is the extension of loadable modules.
	ScriptExt = ".lua"
)

// Metadata is the content of a story manifest.
type Metadata struct {
	Name    string `toml:"name"`
	Author  string `toml:"author"`
	Version string `toml:"version"`
	Notes   string `toml:"notes"`
	// Main names the module whose start function begins the story.
	Main string `toml:"main"`
}

// Story is one discovered story.
type Story struct {
	Root     string
	Metadata Metadata
}

// Catalog is the result of scanning a library root. Problems holds
// manifests that could not be used; the other stories are still playable.
type Catalog struct {
	Stories  []Story
	Problems []error
}

// Discover scans the immediate subdirectories of fsys. Directories without
// a manifest are skipped. Stories are sorted by name.
func Discover(fsys fs.FS) (Catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return Catalog{}, apperrors.Wrap(apperrors.CodeLibraryUnreadable, "read library", err)
	}

	var catalog Catalog
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		story, ok, err := readStory(fsys, entry.Name())
		if err != nil {
			catalog.Problems = append(catalog.Problems, err)
			continue
		}
		if ok {
			catalog.Stories = append(catalog.Stories, story)
		}
	}
	sort.SliceStable(catalog.Stories, func(i, j int) bool {
		return catalog.Stories[i].Metadata.Name < catalog.Stories[j].Metadata.Name
	})
	return catalog, nil
}

func readStory(fsys fs.FS, root string) (Story, bool, error) {
	manifest := path.Join(root, ManifestName)
	data, err := fs.ReadFile(fsys, manifest)
	if errors.Is(err, fs.ErrNotExist) {
		return Story{}, false, nil
	}
	if err != nil {
		return Story{}, false, manifestError(manifest, "unreadable", err)
	}
	meta, err := ParseManifest(data)
	if err != nil {
		return Story{}, false, manifestError(manifest, err.Error(), err)
	}
	return Story{Root: root, Metadata: meta}, true, nil
}

// ParseManifest decodes and validates a manifest. Main defaults to the
// conventional entry module.
func ParseManifest(data []byte) (Metadata, error) {
	var meta Metadata
	md, err := toml.Decode(string(data), &meta)
	if err != nil {
		return Metadata{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return Metadata{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Version = strings.TrimSpace(meta.Version)
	meta.Main = strings.TrimSpace(meta.Main)
	if meta.Name == "" {
		return Metadata{}, errors.New("name is required")
	}
	if meta.Version == "" {
		return Metadata{}, errors.New("version is required")
	}
	if meta.Main == "" {
		meta.Main = game.DefaultEntryModule
	}
	return meta, nil
}

func manifestError(manifest, detail string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeManifestInvalid, fmt.Sprintf("invalid manifest %s", manifest),
		map[string]string{"path": manifest, "detail": detail}, cause)
}

// Find returns the story with the given name or root directory.
func (c Catalog) Find(name string) (Story, error) {
	for _, story := range c.Stories {
		if story.Metadata.Name == name || story.Root == name {
			return story, nil
		}
	}
	return Story{}, apperrors.WithMetadata(apperrors.CodeStoryNotFound, fmt.Sprintf("story %q not found", name),
		map[string]string{"story": name})
}

// LoadModules reads every script of story. Modules are named after the file
// stem and returned in file name order.
func LoadModules(fsys fs.FS, story Story) ([]game.Module, error) {
	dir := path.Join(story.Root, ScriptsDir)
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeScriptLoad, fmt.Sprintf("read %s", dir),
			map[string]string{"path": dir, "detail": err.Error()}, err)
	}

	var modules []game.Module
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ScriptExt {
			continue
		}
		file := path.Join(dir, entry.Name())
		source, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodeScriptLoad, fmt.Sprintf("read %s", file),
				map[string]string{"path": file, "detail": err.Error()}, err)
		}
		modules = append(modules, game.Module{
			Name:   strings.TrimSuffix(entry.Name(), ScriptExt),
			Path:   file,
			Source: string(source),
		})
	}
	if len(modules) == 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeScriptLoad, fmt.Sprintf("no scripts in %s", dir),
			map[string]string{"path": dir, "detail": "no " + ScriptExt + " files"})
	}
	return modules, nil
}
