package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/V4T54L/adru-export/internal/domain"
)

// SourceExtension is the extension of binary ADRU exports.
const SourceExtension = ".adru"

// Artifact is a decoded text file chosen for a source.
type Artifact struct {
	Path    string
	Name    string
	Hash    string
	ModTime time.Time
	// Known is set when the artifact matches a message file already stored.
	Known *domain.MessageFile
}

// Resolver finds the decoded text artifact of a source file in a directory.
type Resolver struct {
	textDir string
	hashes  *HashCache
	logger  *slog.Logger
}

// NewResolver returns a resolver looking in textDir.
func NewResolver(textDir string, hashes *HashCache, logger *slog.Logger) *Resolver {
	return &Resolver{
		textDir: textDir,
		hashes:  hashes,
		logger:  logger.With("component", "artifact_resolver"),
	}
}

// Resolve picks the artifact of sourcePath. A file whose hash matches one of
// the known message files wins, newest message file first. Otherwise the
// newest file sharing the source's stem is taken. known must be ordered
// newest first. domain.ErrMissingArtifact is returned when nothing matches.
func (r *Resolver) Resolve(sourcePath string, known []domain.MessageFile) (Artifact, error) {
	candidates, err := r.candidates()
	if err != nil {
		return Artifact{}, err
	}

	if len(known) > 0 {
		byHash := make(map[string]Artifact, len(candidates))
		for _, c := range candidates {
			c.Hash, err = r.hashes.Hash(c.Path)
			if err != nil {
				return Artifact{}, err
			}
			if _, dup := byHash[c.Hash]; !dup {
				byHash[c.Hash] = c
			}
		}
		for i := range known {
			if c, ok := byHash[known[i].Hash]; ok {
				mf := known[i]
				c.Known = &mf
				r.logger.Debug("Resolved artifact by known hash", "source", filepath.Base(sourcePath), "artifact", c.Name)
				return c, nil
			}
		}
	}

	stem := Stem(sourcePath)
	for _, c := range candidates {
		if Stem(c.Name) != stem {
			continue
		}
		if c.Hash == "" {
			if c.Hash, err = r.hashes.Hash(c.Path); err != nil {
				return Artifact{}, err
			}
		}
		r.logger.Debug("Resolved artifact by name", "source", filepath.Base(sourcePath), "artifact", c.Name)
		return c, nil
	}

	return Artifact{}, fmt.Errorf("%w: %s in %s", domain.ErrMissingArtifact, filepath.Base(sourcePath), r.textDir)
}

// FromPath describes an explicitly chosen artifact.
func (r *Resolver) FromPath(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, fmt.Errorf("%w: %s", domain.ErrMissingArtifact, path)
		}
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	hash, err := r.hashes.Hash(path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Path: path, Name: filepath.Base(path), Hash: hash, ModTime: info.ModTime()}, nil
}

// candidates lists the text artifacts of the directory, newest first.
func (r *Resolver) candidates() ([]Artifact, error) {
	entries, err := os.ReadDir(r.textDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read text directory: %w", err)
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || !IsTextArtifact(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, Artifact{
			Path:    filepath.Join(r.textDir, e.Name()),
			Name:    e.Name(),
			ModTime: info.ModTime(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name < out[j].Name
		}
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// FindSources lists the ADRU source files of dir, sorted by name.
func FindSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), SourceExtension) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
