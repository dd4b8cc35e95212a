package copying

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/contre95/usbdeck/src/music"
	"github.com/gosimple/unidecode"
)

// PathResolver maps a destination label and file name to a path under the USB root.
type PathResolver struct {
	// FATSafe replaces characters FAT file systems reject in every label component and file name.
	FATSafe bool
	// ASCII transliterates labels and file names to ASCII.
	ASCII  bool
	logger *slog.Logger
}

// NewPathResolver creates a resolver. A nil logger falls back to slog.Default.
func NewPathResolver(fatSafe, ascii bool, logger *slog.Logger) *PathResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PathResolver{FATSafe: fatSafe, ASCII: ascii, logger: logger}
}

// Resolve maps (usbRoot, label, fileName) to the output path with the default resolver.
func Resolve(usbRoot, label, fileName string) (string, error) {
	return NewPathResolver(false, false, nil).Resolve(usbRoot, label, fileName)
}

// Resolve returns usbRoot/fileName for the root label and usbRoot/label/fileName otherwise,
// creating the label directory when needed.
func (r *PathResolver) Resolve(usbRoot, label, fileName string) (string, error) {
	fileName = r.cleanComponent(fileName)
	if music.IsRootDestination(label) {
		return filepath.Join(usbRoot, fileName), nil
	}

	dir := filepath.Join(usbRoot, r.cleanLabel(label))
	if escapesRoot(usbRoot, dir) {
		r.logger.Warn("Destination escapes USB root", "root", usbRoot, "label", label, "dir", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination directory %s: %w", dir, err)
	}
	return filepath.Join(dir, fileName), nil
}

func (r *PathResolver) cleanLabel(label string) string {
	if !r.FATSafe && !r.ASCII {
		return label
	}
	components := strings.Split(label, "/")
	for i, comp := range components {
		components[i] = r.cleanComponent(comp)
	}
	return filepath.Join(components...)
}

func (r *PathResolver) cleanComponent(name string) string {
	if r.ASCII {
		name = unidecode.Unidecode(name)
	}
	if r.FATSafe {
		name = sanitizeFATFilename(name)
	}
	return name
}

// sanitizeFATFilename replaces invalid FAT characters with safe alternatives
func sanitizeFATFilename(name string) string {
	// Characters not allowed in FAT: \/:*?"<>|
	replacements := map[rune]string{
		':':  " - ",
		'"':  "'",
		'|':  "-",
		'<':  "(",
		'>':  ")",
		'?':  "",
		'*':  "",
		'\\': "-",
	}

	var result strings.Builder
	for _, char := range name {
		if char < 0x20 {
			continue
		}
		if replacement, ok := replacements[char]; ok {
			result.WriteString(replacement)
		} else {
			result.WriteRune(char)
		}
	}

	// FAT drops trailing dots and spaces silently, which makes two labels collide.
	cleaned := strings.TrimRight(result.String(), ". ")
	if cleaned == "" && name != "" {
		cleaned = "_"
	}
	if len(cleaned) > 255 {
		return cleaned[:255]
	}
	return cleaned
}

func escapesRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
