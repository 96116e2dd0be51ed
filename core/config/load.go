package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory, falling back to the
// embedded default when no file exists there.
func Load(path string) (*Configuration, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs is Load against an arbitrary filesystem, for tests.
func LoadFs(fs afero.Fs, path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(fs, filepath.Join(path, ConfigurationName))
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	out := Default()
	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Initialize writes the default configuration into the directory. Existing
// files are left alone so Initialize is safe to re-run.
func Initialize(fs afero.Fs, dir string, logger *log.Logger) (*Configuration, error) {
	dest := filepath.Join(dir, ConfigurationName)
	exists, err := afero.Exists(fs, dest)
	switch {
	case err != nil:
		return nil, err
	case exists:
		logger.Printf("%s already exists, keeping it", dest)
	default:
		if err := afero.WriteFile(fs, dest, defaultConfigData, 0644); err != nil {
			return nil, err
		}
		logger.Printf("wrote %s", dest)
	}

	return LoadFs(fs, dir)
}
