package skills

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	skilltypes "github.com/openskills/skillagent/pkg/types/skills"
)

// Validate fully parses the definitions found at paths and checks that the
// files they declare exist. A path may be a definition file, a skill
// directory or a root holding several skills. The returned error is a
// *multierror.Error listing every problem, or nil.
func Validate(paths ...string) ([]*skilltypes.Skill, error) {
	p := NewParser()

	var (
		result *multierror.Error
		valid  []*skilltypes.Skill
	)
	for _, root := range paths {
		files, err := definitionsAt(root)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if len(files) == 0 {
			result = multierror.Append(result, errors.Errorf("%s: no %s found", root, DefinitionFileName))
			continue
		}

		for _, file := range files {
			skill, err := p.ParseFile(file, false)
			if err != nil {
				result = multierror.Append(result, errors.Wrap(err, file))
				continue
			}
			if errs := checkResources(skill); len(errs) > 0 {
				result = multierror.Append(result, errs...)
				continue
			}
			valid = append(valid, skill)
		}
	}
	return valid, result.ErrorOrNil()
}

func definitionsAt(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot access %s", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	return findDefinitions(path)
}

func checkResources(skill *skilltypes.Skill) []error {
	var errs []error
	for i := range skill.Resources.Scripts {
		script := &skill.Resources.Scripts[i]
		if p, ok := skill.ResolveScriptPath(script); !ok || !isFile(p) {
			errs = append(errs, errors.Errorf("%s: script %q: %s missing", skill.Name(), script.Name, script.Path))
		}
	}
	for _, ref := range skill.Resources.References {
		if p, ok := skill.ResolveReferencePath(ref); !ok || !isFile(p) {
			errs = append(errs, errors.Errorf("%s: reference %s missing", skill.Name(), filepath.ToSlash(ref.Path)))
		}
	}
	return errs
}
