package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-loader/engine/assets/chunk"
	"github.com/spaghettifunk/anima-loader/engine/core"
	"github.com/spaghettifunk/anima-loader/engine/jobs"
	"github.com/spaghettifunk/anima-loader/engine/resources"
)

const (
	ShaderFileExtension = "csshader"

	vertexShaderTag   = "VertexShader"
	fragmentShaderTag = "FragmentShader"
)

/** @brief Configuration for the shader provider. */
type ShaderProviderConfig struct {
	/** @brief The chunk holding the shader stages, GLSL unless set. */
	Language string
}

/**
 * @brief Loads shader files of the form
 *
 *	GLSL
 *	{
 *		VertexShader { ... }
 *		FragmentShader { ... }
 *	}
 *
 * into vertex and fragment source pairs.
 */
type ShaderProvider struct {
	Config    *ShaderProviderConfig
	fs        resources.FileSystem
	scheduler jobs.Scheduler
}

func NewShaderProvider(config *ShaderProviderConfig, fs resources.FileSystem, scheduler jobs.Scheduler) *ShaderProvider {
	if config == nil {
		config = &ShaderProviderConfig{}
	}
	if config.Language == "" {
		config.Language = "GLSL"
	}
	return &ShaderProvider{Config: config, fs: fs, scheduler: scheduler}
}

func (sp *ShaderProvider) ResourceType() resources.ResourceType {
	return resources.ResourceTypeShader
}

func (sp *ShaderProvider) CanCreateResourceWithFileExtension(ext string) bool {
	return resources.NormalizeExtension(ext) == ShaderFileExtension
}

func (sp *ShaderProvider) CreateResourceFromFile(location resources.StorageLocation, filePath string, out resources.Resource) error {
	l := jobs.NewLoad("shader", location, filePath, out)
	sp.load(l)
	return l.Handle.Err()
}

func (sp *ShaderProvider) CreateResourceFromFileAsync(location resources.StorageLocation, filePath string, delegate resources.AsyncLoadDelegate, out resources.Resource) *resources.LoadHandle {
	l := jobs.NewAsyncLoad("shader", sp.scheduler, location, filePath, delegate, out)
	sp.load(l)
	return l.Handle
}

func (sp *ShaderProvider) load(l *jobs.Load) {
	if !l.Start() {
		return
	}
	shader, ok := l.Resource.(*resources.Shader)
	if !ok {
		l.Fail(fmt.Errorf("%w: shader provider cannot build a %s resource", core.ErrBuildFailure, l.Resource.ResourceType()))
		return
	}

	var vertex, fragment string
	l.Decode(func() error {
		var err error
		vertex, fragment, err = sp.parse(l)
		return err
	}, func() {
		l.Build(func() error {
			return shader.Build(vertex, fragment)
		})
	})
}

// parse reads the file and extracts both stages of the configured language.
func (sp *ShaderProvider) parse(l *jobs.Load) (string, string, error) {
	data, err := sp.fs.ReadFile(l.Location, l.Path)
	if err != nil {
		return "", "", err
	}
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: %s is empty", core.ErrIOFailure, l.Path)
	}
	text := string(data)
	l.Logger().Debug("shader chunks", "tags", chunk.Tags(text))

	language, err := extract(sp.Config.Language, text)
	if err != nil {
		return "", "", err
	}
	vertex, err := extract(vertexShaderTag, language)
	if err != nil {
		return "", "", err
	}
	fragment, err := extract(fragmentShaderTag, language)
	if err != nil {
		return "", "", err
	}
	return vertex, fragment, nil
}

// extract is chunk.Find with empty chunks counted as missing.
func extract(tag, text string) (string, error) {
	body, err := chunk.Find(tag, text)
	if err != nil {
		return "", err
	}
	if body == "" {
		return "", fmt.Errorf("%w: %s chunk is empty", core.ErrMalformedChunk, tag)
	}
	return body, nil
}
