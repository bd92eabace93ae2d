package resources

import (
	"path"
	"strings"
)

// Provider turns files of some extensions into resources of one type.
type Provider interface {
	// ResourceType is the type of resource this provider produces.
	ResourceType() ResourceType
	// CanCreateResourceWithFileExtension takes the extension without the
	// leading dot. It has no side effects.
	CanCreateResourceWithFileExtension(ext string) bool
	// CreateResourceFromFile blocks until out is terminal. Builds run on the
	// calling goroutine, which must own the graphics context.
	CreateResourceFromFile(location StorageLocation, filePath string, out Resource) error
	// CreateResourceFromFileAsync returns at once. The delegate, if not nil,
	// runs exactly once on the main thread after out is terminal.
	CreateResourceFromFileAsync(location StorageLocation, filePath string, delegate AsyncLoadDelegate, out Resource) *LoadHandle
}

// ProviderRegistry lets providers discover each other at init time.
type ProviderRegistry interface {
	ProvidersOfType(t ResourceType) []Provider
}

// Initializer is implemented by providers that look up collaborators once
// every provider is registered.
type Initializer interface {
	OnInit(registry ProviderRegistry) error
}

// Destroyer is implemented by providers holding state to release.
type Destroyer interface {
	OnDestroy()
}

// SplitBaseFilename splits "dir/name.ext" into "dir/name" and "ext". The
// extension has no dot and is empty when the file has none.
func SplitBaseFilename(filePath string) (string, string) {
	ext := path.Ext(filePath)
	if ext == "" || strings.HasSuffix(filePath, "/"+ext) || ext == filePath {
		return filePath, ""
	}
	return strings.TrimSuffix(filePath, ext), ext[1:]
}

// NormalizeExtension lower-cases ext and strips a leading dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
